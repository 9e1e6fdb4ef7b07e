// Package registry tracks rooms in Redis: short shareable codes, metadata
// with a TTL, and live presence sets. Delivery never depends on it; the
// relay's in-memory rooms stay authoritative and the registry is the
// discovery and observation surface.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/onuvuti/resonance/config"
	"github.com/onuvuti/resonance/internal/protocol"
	"github.com/redis/go-redis/v9"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no ambiguous chars
)

var ErrRoomNotFound = fmt.Errorf("room not found")

// Registry is the room discovery surface the relay consults.
type Registry interface {
	CreateRoom(ctx context.Context) (protocol.CreateRoomResponse, error)
	// Resolve maps a shareable code to its room id. Identifiers that are not
	// registered codes pass through unchanged: any shared well-known key is
	// a valid ad-hoc room.
	Resolve(ctx context.Context, identifier string) (string, error)
	Room(ctx context.Context, identifier string) (protocol.RoomMetadata, error)
	DeleteRoom(ctx context.Context, roomID string) error
	AddOccupant(ctx context.Context, roomID, memberID string) error
	RemoveOccupant(ctx context.Context, roomID, memberID string) error
	OccupantCount(ctx context.Context, roomID string) (int, error)
}

// Redis implements Registry on a go-redis client.
type Redis struct {
	log    *slog.Logger
	client *redis.Client
	ttl    time.Duration
}

var _ Registry = (*Redis)(nil)

// Dial connects and pings a Redis client from config.
func Dial(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("registry: connect to redis: %w", err)
	}
	return client, nil
}

func NewRedis(log *slog.Logger, client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{log: log, client: client, ttl: ttl}
}

func (r *Redis) CreateRoom(ctx context.Context) (protocol.CreateRoomResponse, error) {
	meta := protocol.RoomMetadata{
		ID:        uuid.New().String(),
		Code:      generateCode(),
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return protocol.CreateRoomResponse{}, fmt.Errorf("registry: encode room: %w", err)
	}
	if err := r.client.Set(ctx, roomKey(meta.ID), data, r.ttl).Err(); err != nil {
		return protocol.CreateRoomResponse{}, fmt.Errorf("registry: store room: %w", err)
	}
	if err := r.client.Set(ctx, codeKey(meta.Code), meta.ID, r.ttl).Err(); err != nil {
		return protocol.CreateRoomResponse{}, fmt.Errorf("registry: store room code: %w", err)
	}

	r.log.Info("registry: room created", "room", meta.ID, "code", meta.Code)
	return protocol.CreateRoomResponse{RoomID: meta.ID, Code: meta.Code}, nil
}

func (r *Redis) Resolve(ctx context.Context, identifier string) (string, error) {
	if len(identifier) != codeLength {
		return identifier, nil
	}
	id, err := r.client.Get(ctx, codeKey(identifier)).Result()
	if err == redis.Nil {
		// Not a registered code; treat it as an ad-hoc room key.
		return identifier, nil
	}
	if err != nil {
		return "", fmt.Errorf("registry: resolve code: %w", err)
	}
	return id, nil
}

func (r *Redis) Room(ctx context.Context, identifier string) (protocol.RoomMetadata, error) {
	roomID, err := r.Resolve(ctx, identifier)
	if err != nil {
		return protocol.RoomMetadata{}, err
	}

	data, err := r.client.Get(ctx, roomKey(roomID)).Result()
	if err == redis.Nil {
		return protocol.RoomMetadata{}, ErrRoomNotFound
	}
	if err != nil {
		return protocol.RoomMetadata{}, fmt.Errorf("registry: load room: %w", err)
	}

	var meta protocol.RoomMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return protocol.RoomMetadata{}, fmt.Errorf("registry: decode room: %w", err)
	}

	count, err := r.OccupantCount(ctx, roomID)
	if err == nil {
		meta.OccupantCount = count
	}
	return meta, nil
}

func (r *Redis) DeleteRoom(ctx context.Context, roomID string) error {
	meta, err := r.Room(ctx, roomID)
	if err != nil {
		return err
	}
	r.client.Del(ctx, roomKey(meta.ID), codeKey(meta.Code), occupantsKey(meta.ID))
	r.log.Info("registry: room deleted", "room", meta.ID)
	return nil
}

func (r *Redis) AddOccupant(ctx context.Context, roomID, memberID string) error {
	if err := r.client.SAdd(ctx, occupantsKey(roomID), memberID).Err(); err != nil {
		return fmt.Errorf("registry: add occupant: %w", err)
	}
	r.client.Expire(ctx, occupantsKey(roomID), r.ttl)
	return nil
}

func (r *Redis) RemoveOccupant(ctx context.Context, roomID, memberID string) error {
	if err := r.client.SRem(ctx, occupantsKey(roomID), memberID).Err(); err != nil {
		return fmt.Errorf("registry: remove occupant: %w", err)
	}
	return nil
}

func (r *Redis) OccupantCount(ctx context.Context, roomID string) (int, error) {
	n, err := r.client.SCard(ctx, occupantsKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("registry: occupant count: %w", err)
	}
	return int(n), nil
}

func roomKey(roomID string) string      { return "room:" + roomID }
func codeKey(code string) string        { return "code:" + code }
func occupantsKey(roomID string) string { return "room:" + roomID + ":occupants" }

func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}
