// internal/types/models.go
package types

import (
	"time"
)

// Role identifies the author of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single committed message in a session's history.
// Turns are immutable once appended.
type Turn struct {
	Role    Role       `json:"role"`
	Text    string     `json:"text"`
	At      time.Time  `json:"at"`
	AudioID ArtifactID `json:"audio_id,omitempty"`
}

// Session holds an ordered conversation history plus activity metadata.
type Session struct {
	ID         SessionID `json:"id"`
	Turns      []Turn    `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Artifact is a synthesized-audio payload addressable by an opaque ID.
type Artifact struct {
	ID        ArtifactID `json:"id"`
	Data      []byte     `json:"-"`
	Mime      string     `json:"mime"`
	CreatedAt time.Time  `json:"created_at"`
}

// InboundTurn is a user submission handed to the gateway by a transport.
type InboundTurn struct {
	Source    string    `json:"source"`
	SessionID SessionID `json:"session_id,omitempty"`
	Text      string    `json:"text"`
}

// TurnResult is what a completed turn-cycle hands back to the transport.
type TurnResult struct {
	SessionID SessionID  `json:"session_id"`
	Text      string     `json:"text"`
	AudioID   ArtifactID `json:"audio_id,omitempty"`
}
