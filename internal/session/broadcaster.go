package session

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Audatic07/collab-notes/internal/metrics"
	"github.com/Audatic07/collab-notes/internal/models"
)

// Broadcaster fans a frame out to the members of a room as registered at call
// time. Delivery is per session and fire-and-forget.
type Broadcaster struct {
	registry *Registry
	lookup   func(sessionID string) (*Session, bool)
	log      *zap.Logger
}

func NewBroadcaster(registry *Registry, lookup func(string) (*Session, bool), log *zap.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, lookup: lookup, log: log}
}

// EmitToRoom encodes the frame once and offers it to every member. It
// returns how many members accepted it.
func (b *Broadcaster) EmitToRoom(room, event string, payload any) int {
	frame := models.WSFrame{Type: event, Data: payload}
	encoded, err := json.Marshal(frame)
	if err != nil {
		b.log.Error("failed to encode room frame", zap.String("room", room), zap.String("event", event), zap.Error(err))
		return 0
	}

	delivered := 0
	for _, id := range b.registry.SessionIDs(room) {
		s, ok := b.lookup(id)
		if !ok || s.client == nil {
			metrics.DeliveryDropped()
			continue
		}
		if !s.client.deliver(frame, encoded) {
			metrics.DeliveryDropped()
			b.log.Warn("dropped room delivery",
				zap.String("room", room),
				zap.String("event", event),
				zap.String("session", id))
			continue
		}
		delivered++
	}
	return delivered
}
