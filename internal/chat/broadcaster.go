package chat

import (
	"encoding/json"
	"log/slog"

	"github.com/Logesh0108/secure-chat-backend/internal/domain"
	"github.com/Logesh0108/secure-chat-backend/internal/metrics"
)

// Broadcaster fans an event out to every registered connection. Each
// recipient is attempted independently through its own writer, so one slow
// or broken transport never stalls or aborts delivery to the rest. Delivery
// is at-most-once, best-effort: a failed recipient is unregistered and
// dropped from all future fan-outs, never retried.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// BroadcastAll delivers event to every connection in the registry snapshot
// taken at call time. Connections registered afterwards do not receive it.
func (b *Broadcaster) BroadcastAll(event any) {
	b.broadcast(event, nil)
}

// BroadcastExcept delivers event to every registered connection except the
// excluded one. Used for typing signals, which must not echo back to their
// originator.
func (b *Broadcaster) BroadcastExcept(event any, excluded *Connection) {
	b.broadcast(event, excluded)
}

func (b *Broadcaster) broadcast(event any, excluded *Connection) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "error", err)
		return
	}
	metrics.BroadcastEvents.WithLabelValues(eventLabel(event)).Inc()

	for _, c := range b.registry.Snapshot() {
		if c == excluded {
			continue
		}
		if !c.TrySend(data) {
			// Unwritable recipient: evict so it does not fail again on
			// every subsequent event. The sender's own operation still
			// succeeds.
			metrics.SlowClientsEvicted.Inc()
			slog.Warn("Evicting unwritable client", "user", c.User())
			b.registry.Unregister(c)
		}
	}
}

func eventLabel(event any) string {
	switch e := event.(type) {
	case *domain.Message:
		return string(e.Kind)
	case domain.ReactionEvent:
		return domain.EventReaction
	case domain.TypingEvent:
		return domain.EventTyping
	default:
		return "unknown"
	}
}
