package gateway

import (
	"context"
	"time"

	"github.com/user/voxchat/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single turn-cycle for a session: one user submission through
// primary response, optional tool execution, optional follow-up, to a
// committed answer.
type Run struct {
	ID         types.RunID
	SessionID  types.SessionID
	Turn       *types.InboundTurn
	Status     RunStatus
	CreatedAt  time.Time
	Ctx        context.Context
	OnComplete func(*types.TurnResult)
	OnError    func(error)
}

// NewRun creates a Run in the Queued state for the given session and turn.
func NewRun(sessionID types.SessionID, turn *types.InboundTurn) *Run {
	return &Run{
		ID:        types.NewRunID(),
		SessionID: sessionID,
		Turn:      turn,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}
