package domain

// Inbound event types, tagged by the "type" field of each client frame.
const (
	EventMessage  = "message"
	EventImage    = "image"
	EventReaction = "reaction"
	EventTyping   = "typing"
)

// InboundEvent is one client frame. Only the fields required by the tagged
// type are expected to be set; anything else is ignored.
type InboundEvent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Image     string `json:"image,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
}

// ReactionEvent is the outbound payload for a reaction update. It always
// carries the full merged reaction map for the message, never a delta, so
// clients can resync from the last broadcast alone.
type ReactionEvent struct {
	Type      string      `json:"type"`
	MessageID string      `json:"messageId"`
	Reactions ReactionMap `json:"reactions"`
}

// TypingEvent is the outbound payload for an ephemeral typing signal.
// It is never stored and has no identifier.
type TypingEvent struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// NewReactionEvent builds the reaction-updated payload for a message.
func NewReactionEvent(messageID string, reactions ReactionMap) ReactionEvent {
	return ReactionEvent{Type: EventReaction, MessageID: messageID, Reactions: reactions}
}

// NewTypingEvent builds the typing payload for a user label.
func NewTypingEvent(user string) TypingEvent {
	return TypingEvent{Type: EventTyping, User: user}
}
