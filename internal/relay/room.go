package relay

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/onuvuti/resonance/internal/protocol"
)

// room tracks the members rendezvoused under one room id. Membership
// mutation is serialized per room; different rooms share nothing.
type room struct {
	id  string
	log *slog.Logger

	mu      sync.RWMutex
	members map[string]*member
}

func newRoom(id string, log *slog.Logger) *room {
	return &room{
		id:      id,
		log:     log,
		members: make(map[string]*member),
	}
}

// add registers m and returns the members that were already present, under
// the same critical section, so two racing joins still see each other from
// exactly one side.
func (r *room) add(m *member) []*member {
	r.mu.Lock()
	defer r.mu.Unlock()

	others := make([]*member, 0, len(r.members))
	for _, existing := range r.members {
		others = append(others, existing)
	}
	r.members[m.id] = m
	return others
}

// remove deregisters m and reports whether the room is now empty.
func (r *room) remove(m *member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, m.id)
	return len(r.members) == 0
}

func (r *room) empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members) == 0
}

// broadcast forwards frame to every member except the sender. Delivery is
// fire-and-forget: a member with a full send buffer loses this frame without
// delaying anyone else.
func (r *room) broadcast(frame protocol.Frame, excludeID string) {
	data, err := json.Marshal(frame)
	if err != nil {
		r.log.Error("relay: encode frame", "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, m := range r.members {
		if id != excludeID {
			m.enqueue(data)
		}
	}
}
