package state

import (
	"errors"
	"time"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrNilSession     = errors.New("session state is nil")
)

// SessionState is the single source of truth for one user session: the
// message history, the current cart, the per-operation in-flight latches,
// and the checkout outcome. Exactly one owner (the session orchestrator)
// holds a mutable reference; everything handed outward is a value copy.
type SessionState struct {
	SessionID string `json:"session_id"`

	Messages []Message    `json:"messages,omitempty"`
	Cart     CartSnapshot `json:"cart"`

	// One latch per operation kind. A set latch rejects re-entry of the
	// same kind; operations of other kinds stay schedulable.
	ChatPending     bool `json:"chat_pending,omitempty"`
	CartPending     bool `json:"cart_pending,omitempty"`
	CheckoutPending bool `json:"checkout_pending,omitempty"`

	LastOrderID   string `json:"last_order_id,omitempty"`
	OrderComplete bool   `json:"order_complete,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSessionState(sessionID string, now time.Time) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		UpdatedAt: now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// AppendMessage adds one turn to the history. Append order is the only
// ordering the history has.
func (s *SessionState) AppendMessage(m Message) {
	s.Messages = append(s.Messages, m)
}

// CloneMessages returns a copy of the history safe to hand across the
// ownership boundary.
func (s *SessionState) CloneMessages() []Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return append([]Message(nil), s.Messages...)
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if s.SessionID == "" {
		return ErrInvalidSession
	}
	for _, ln := range s.Cart.Lines {
		if ln.Quantity <= 0 {
			return errors.New("cart line with non-positive quantity")
		}
		if ln.Product.PartNumber == "" {
			return errors.New("cart line without part number")
		}
	}
	return nil
}
