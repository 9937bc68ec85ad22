package chat

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Logesh0108/secure-chat-backend/internal/domain"
	"github.com/Logesh0108/secure-chat-backend/internal/metrics"
)

// Store holds the append-only log of messages, keyed by identifier for
// reaction mutation. Post and React serialize on one mutex, which gives the
// ordering guarantees the relay advertises: enumeration order equals
// call-acceptance order, and concurrent reactions never lose updates.
type Store struct {
	mu       sync.Mutex
	messages []*domain.Message
	byID     map[string]*domain.Message
}

func NewStore() *Store {
	return &Store{
		byID: make(map[string]*domain.Message),
	}
}

// Post appends a new message with a fresh identifier and empty reaction
// state, and returns a detached copy safe to marshal outside the lock.
func (s *Store) Post(author string, kind domain.MessageKind, payload string) *domain.Message {
	msg := &domain.Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		User:      author,
		Reactions: domain.ReactionMap{},
	}
	switch kind {
	case domain.KindImage:
		msg.Image = payload
	default:
		msg.Text = payload
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	out := copyMessage(msg)
	s.mu.Unlock()

	metrics.MessagesPosted.WithLabelValues(string(kind)).Inc()
	return out
}

// React appends user to the emoji's reaction set on the identified message.
// A repeat reaction by the same user is a no-op. The returned map is always
// a deep copy of the full merged reaction state for the message, so callers
// can broadcast it without holding the store lock. Reacting to an unknown
// identifier returns domain.ErrMessageNotFound; it never panics, and the
// caller decides whether to drop or report it.
func (s *Store) React(messageID, emoji, user string) (domain.ReactionMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[messageID]
	if !ok {
		metrics.ReactionsDropped.Inc()
		return nil, domain.ErrMessageNotFound
	}

	users := msg.Reactions[emoji]
	if !slices.Contains(users, user) {
		msg.Reactions[emoji] = append(users, user)
		metrics.ReactionsApplied.Inc()
	}

	return msg.Reactions.Clone(), nil
}

// Messages returns detached copies of all messages in posting order.
func (s *Store) Messages() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Message, len(s.messages))
	for i, msg := range s.messages {
		out[i] = copyMessage(msg)
	}
	return out
}

// Len returns the number of messages posted so far.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func copyMessage(msg *domain.Message) *domain.Message {
	out := *msg
	out.Reactions = msg.Reactions.Clone()
	return &out
}

