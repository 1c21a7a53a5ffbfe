package notify

import (
	"encoding/json"
	"log/slog"

	"github.com/spark-dating/spark-server/internal/presence"
)

// Event types pushed to live connections.
const (
	EventNewMatch        = "newMatch"
	EventNewMessage      = "newMessage"
	EventMessageDeleted  = "messageDeleted"
	EventUnreadCount     = "unreadCount"
	EventUnreadMapUpdate = "unreadMapUpdate"
)

// Event is the wire envelope for a realtime push.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Notifier fans an event out to every live connection of a target user.
// Delivery is best-effort: durable state is authoritative, a miss here is
// recovered by the client's next fetch.
type Notifier struct {
	registry *presence.Registry
	logger   *slog.Logger
}

func NewNotifier(registry *presence.Registry, logger *slog.Logger) *Notifier {
	return &Notifier{registry: registry, logger: logger}
}

// Notify pushes (eventType, payload) to all of the user's connections.
// A fully offline user is a silent no-op. A failure on one handle is
// logged and never stops delivery to the remaining handles, and never
// propagates to the caller.
func (n *Notifier) Notify(userID uint64, eventType string, payload interface{}) {
	handles := n.registry.HandlesFor(userID)
	if len(handles) == 0 {
		return
	}

	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		n.logger.Error("failed to encode event", "event", eventType, "err", err)
		return
	}

	for _, h := range handles {
		if err := h.Send(data); err != nil {
			// transient delivery failure: the handle is slow or dying
			n.logger.Warn("dropped event for connection",
				"user_id", userID, "event", eventType, "err", err)
		}
	}
}
