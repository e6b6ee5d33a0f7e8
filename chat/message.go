package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who a message is from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the session log. It is never edited after it
// has been appended.
type Message struct {
	ID        string
	Seq       int // 1-based position in the log
	Role      Role
	Text      string
	CreatedAt time.Time

	// Kind is the nl2sql.Kind of the response an assistant message
	// answers ("success" or "error"); empty for user messages.
	Kind string
}

// Failed reports whether m answers a question with a backend or
// transport error.
func (m Message) Failed() bool { return m.Kind == "error" }

// newMessageID returns a time-ordered UUIDv7, falling back to a random
// UUID if the v7 generator fails.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
