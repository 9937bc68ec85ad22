package domain

// MessageKind discriminates the two message variants.
type MessageKind string

const (
	KindText  MessageKind = "message"
	KindImage MessageKind = "image"
)

// ReactionMap maps an emoji symbol to the users who applied it, in the order
// their reactions were accepted. A user appears at most once per emoji.
type ReactionMap map[string][]string

// Clone returns a deep copy. Broadcast payloads must never alias the store's
// live map, since reactions mutate it in place under the store lock.
func (r ReactionMap) Clone() ReactionMap {
	if r == nil {
		return nil
	}
	out := make(ReactionMap, len(r))
	for emoji, users := range r {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}

// Message is a posted chat item. The Kind field doubles as the outbound
// event tag, so a Message marshals directly into the wire shape clients
// expect for message-posted events.
type Message struct {
	ID        string      `json:"id"`
	Kind      MessageKind `json:"type"`
	User      string      `json:"user"`
	Text      string      `json:"text,omitempty"`
	Image     string      `json:"image,omitempty"`
	Reactions ReactionMap `json:"reactions"`
}
