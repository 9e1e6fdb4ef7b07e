package protocol

import "time"

// RoomMetadata describes a registered room.
type RoomMetadata struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"` // Short, shareable room code (e.g. "ABCD123")
	CreatedAt     time.Time `json:"createdAt"`
	OccupantCount int       `json:"occupantCount"`
}

// CreateRoomResponse is returned by the room registry API.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}
