// Package relay implements the signaling relay: rendezvous two clients into
// a room and forward opaque payloads between them. The relay holds no
// application semantics; it routes on frame type and nothing else.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/onuvuti/resonance/internal/profile"
	"github.com/onuvuti/resonance/internal/protocol"
	"github.com/onuvuti/resonance/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware.
		return true
	},
}

// Service routes websocket members into rooms and exposes the room registry
// API. Construct with NewService and mount via Routes.
type Service struct {
	log      *slog.Logger
	registry registry.Registry

	mu    sync.RWMutex
	rooms map[string]*room
}

func NewService(log *slog.Logger, reg registry.Registry) *Service {
	return &Service{
		log:      log,
		registry: reg,
		rooms:    make(map[string]*room),
	}
}

// Routes mounts the health check, room registry API, and websocket endpoint
// on router.
func (s *Service) Routes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/rooms", s.createRoom)
		api.GET("/rooms/:roomId", s.getRoom)
		api.DELETE("/rooms/:roomId", s.deleteRoom)
	}

	router.GET("/ws/rooms/:roomId", s.handleSignaling)
}

// handleSignaling upgrades the connection and runs the join protocol: the
// first frame must be a join carrying the caller's accessibility profile.
func (s *Service) handleSignaling(c *gin.Context) {
	identifier := c.Param("roomId")
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}

	roomID, err := s.registry.Resolve(c.Request.Context(), identifier)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("relay: upgrade failed", "error", err)
		return
	}

	join, err := readJoin(conn)
	if err != nil {
		s.log.Debug("relay: join handshake failed", "room", roomID, "error", err)
		writeErrorFrame(conn, "expected join frame")
		conn.Close()
		return
	}

	m := newMember(uuid.New().String(), join.DisplayName, joinProfile(join), conn, s.log)

	// Robust pairing: snapshot-and-add atomically, then cross-notify so a
	// late joiner learns about the occupant and the occupant learns about
	// the late joiner even when joins race.
	r, others := s.join(roomID, m)

	m.sendFrame(protocol.Frame{Type: protocol.FrameTypeJoined, From: m.id, RoomID: roomID})
	for _, other := range others {
		prof := other.prof
		m.sendFrame(protocol.Frame{
			Type:        protocol.FrameTypePeerJoined,
			From:        other.id,
			RoomID:      roomID,
			Profile:     &prof,
			DisplayName: other.displayName,
		})
		mProf := m.prof
		other.sendFrame(protocol.Frame{
			Type:        protocol.FrameTypePeerJoined,
			From:        m.id,
			RoomID:      roomID,
			Profile:     &mProf,
			DisplayName: m.displayName,
		})
	}

	if err := s.registry.AddOccupant(c.Request.Context(), roomID, m.id); err != nil {
		s.log.Warn("relay: record occupant", "error", err)
	}
	s.log.Info("relay: member joined", "member", m.id, "room", roomID, "occupants", len(others)+1)

	go m.writePump()
	go m.readPump(r, s.onLeave)
}

// onLeave runs when a member's connection closes. Remaining members are not
// notified; the peer discovers the absence through its own transport.
func (s *Service) onLeave(m *member, r *room) {
	m.conn.Close()
	if r.remove(m) {
		s.closeIfEmpty(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.registry.RemoveOccupant(ctx, r.id, m.id); err != nil {
		s.log.Warn("relay: remove occupant", "error", err)
	}
	s.log.Info("relay: member left", "member", m.id, "room", r.id)
}

// join registers m in the room under s.mu, so a join can never land in a
// room that closeIfEmpty is about to discard.
func (s *Service) join(roomID string, m *member) (*room, []*member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		r = newRoom(roomID, s.log)
		s.rooms[roomID] = r
		s.log.Debug("relay: room opened", "room", roomID)
	}
	return r, r.add(m)
}

// closeIfEmpty discards r only if it is still the registered room for its id
// and still empty; a join that won the race keeps it alive.
func (s *Service) closeIfEmpty(r *room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[r.id] != r || !r.empty() {
		return
	}
	delete(s.rooms, r.id)
	s.log.Debug("relay: room closed", "room", r.id)
}

func (s *Service) createRoom(c *gin.Context) {
	resp, err := s.registry.CreateRoom(c.Request.Context())
	if err != nil {
		s.log.Error("relay: create room", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Service) getRoom(c *gin.Context) {
	meta, err := s.registry.Room(c.Request.Context(), c.Param("roomId"))
	if errors.Is(err, registry.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Service) deleteRoom(c *gin.Context) {
	err := s.registry.DeleteRoom(c.Request.Context(), c.Param("roomId"))
	if errors.Is(err, registry.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "room deleted"})
}

func readJoin(conn *websocket.Conn) (protocol.Frame, error) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Frame{}, err
	}
	var frame protocol.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return protocol.Frame{}, err
	}
	if frame.Type != protocol.FrameTypeJoin {
		return protocol.Frame{}, errors.New("first frame must be join")
	}
	return frame, nil
}

func joinProfile(frame protocol.Frame) profile.Profile {
	if frame.Profile != nil {
		return *frame.Profile
	}
	return profile.Profile{}
}

func writeErrorFrame(conn *websocket.Conn, msg string) {
	data, err := json.Marshal(protocol.Frame{Type: protocol.FrameTypeError, Error: msg})
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
}
