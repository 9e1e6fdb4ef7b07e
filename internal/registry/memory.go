package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onuvuti/resonance/internal/protocol"
)

// Memory is an in-process Registry for tests and single-instance
// deployments where Redis would be overhead. Semantics match Redis minus the
// TTL expiry.
var _ Registry = (*Memory)(nil)

type Memory struct {
	mu        sync.Mutex
	rooms     map[string]protocol.RoomMetadata
	codes     map[string]string
	occupants map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		rooms:     make(map[string]protocol.RoomMetadata),
		codes:     make(map[string]string),
		occupants: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) CreateRoom(context.Context) (protocol.CreateRoomResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta := protocol.RoomMetadata{
		ID:        uuid.New().String(),
		Code:      generateCode(),
		CreatedAt: time.Now(),
	}
	m.rooms[meta.ID] = meta
	m.codes[meta.Code] = meta.ID
	return protocol.CreateRoomResponse{RoomID: meta.ID, Code: meta.Code}, nil
}

func (m *Memory) Resolve(_ context.Context, identifier string) (string, error) {
	if len(identifier) != codeLength {
		return identifier, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.codes[identifier]; ok {
		return id, nil
	}
	return identifier, nil
}

func (m *Memory) Room(ctx context.Context, identifier string) (protocol.RoomMetadata, error) {
	roomID, _ := m.Resolve(ctx, identifier)

	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.rooms[roomID]
	if !ok {
		return protocol.RoomMetadata{}, ErrRoomNotFound
	}
	meta.OccupantCount = len(m.occupants[roomID])
	return meta, nil
}

func (m *Memory) DeleteRoom(ctx context.Context, roomID string) error {
	meta, err := m.Room(ctx, roomID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, meta.ID)
	delete(m.codes, meta.Code)
	delete(m.occupants, meta.ID)
	return nil
}

func (m *Memory) AddOccupant(_ context.Context, roomID, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.occupants[roomID] == nil {
		m.occupants[roomID] = make(map[string]struct{})
	}
	m.occupants[roomID][memberID] = struct{}{}
	return nil
}

func (m *Memory) RemoveOccupant(_ context.Context, roomID, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.occupants[roomID], memberID)
	return nil
}

func (m *Memory) OccupantCount(_ context.Context, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.occupants[roomID]), nil
}
