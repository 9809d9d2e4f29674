package chat

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/assistant"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/models"
)

// Session holds the conversation of one browsing session: the append-only transcript, the
// initialization flag gating model requests, and the model client bound at initialization.
//
// A Session is safe for concurrent use; the reply of an asynchronous request is appended from another
// goroutine than the one rendering the page.
type Session struct {
	id string

	mu           sync.Mutex
	transcript   []models.Message
	initialized  bool
	pending      bool
	customerInfo map[string]string
	client       *assistant.Client
	lastSeen     time.Time
	// version grows on every transcript change, clears included.
	version uint64
}

// Snapshot is a consistent view of a session transcript.
type Snapshot struct {
	Messages []models.Message
	Pending  bool
	Version  uint64
}

// NewSession creates an uninitialized session with an empty transcript.
func NewSession(id string) *Session {
	return &Session{
		id:           id,
		customerInfo: map[string]string{},
		lastSeen:     time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Append adds message to the end of the transcript. The transcript is not bounded.
func (s *Session) Append(message models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, message)
	s.version++
}

// Clear empties the transcript. Every other field is left as is.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = nil
	s.version++
}

// Messages returns a copy of the transcript in chronological order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.transcript)
}

// Snapshot returns the transcript together with the pending state and version it was read at.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Messages: slices.Clone(s.transcript),
		Pending:  s.pending,
		Version:  s.version,
	}
}

// Len returns the number of messages in the transcript.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.transcript)
}

// IsInitialized reports whether the session may send requests to the model.
func (s *Session) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.initialized
}

// SetInitialized sets the initialization flag. Model requests also need a bound client; Service.Initialize
// binds one when missing and restores the flag when one is already bound.
func (s *Session) SetInitialized(initialized bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = initialized
}

// Pending reports whether a model request of this session is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending
}

// CustomerInfo returns a copy of the customer details attached to the session.
func (s *Session) CustomerInfo() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.customerInfo)
}

// LastSeen returns the time the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = now
}

// restore marks the session initialized if a client is already bound, reporting whether it did.
func (s *Session) restore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return false
	}
	s.initialized = true
	return true
}

// bind attaches client and marks the session initialized. It reports false if a client was already
// bound; that client is kept and the session is still marked initialized.
func (s *Session) bind(client *assistant.Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	if s.client != nil {
		return false
	}
	s.client = client
	return true
}

// begin appends the question of a model request and marks the session pending.
func (s *Session) begin(question models.Message) (*assistant.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || s.client == nil {
		return nil, ErrNotInitialized
	}
	if s.pending {
		return nil, ErrRequestPending
	}
	s.pending = true
	s.transcript = append(s.transcript, question)
	s.version++
	return s.client, nil
}

// finish appends the reply of the in-flight request and clears the pending state.
func (s *Session) finish(reply models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, reply)
	s.pending = false
	s.version++
}

// appendExchange appends a question and its canned answer back to back.
func (s *Session) appendExchange(question, answer models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if s.pending {
		return ErrRequestPending
	}
	s.transcript = append(s.transcript, question, answer)
	s.version++
	return nil
}

func (s *Session) clearIdle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return ErrRequestPending
	}
	s.transcript = nil
	s.version++
	return nil
}
