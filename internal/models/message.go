package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry of a session transcript. It contains the participant's role,
// the text content, and the wall-clock time the message was created. A Message is never modified after
// NewMessage returns it.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed or triggered by the customer.
	RoleUser Role = "user"
	// RoleBot represents a reply from the customer service, either canned or generated by the model.
	RoleBot Role = "bot"
)

// TimeOfDayLayout is the layout used when a message timestamp is displayed.
const TimeOfDayLayout = "15:04:05"

// NewMessage creates a message with a fresh ID stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// TimeOfDay returns the message timestamp formatted as a wall-clock time of day.
func (m Message) TimeOfDay() string {
	return m.Timestamp.Format(TimeOfDayLayout)
}

// IsUser reports whether the message was sent by the customer.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}
