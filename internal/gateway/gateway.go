package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/voxchat/internal/types"
)

// Gateway turns transport submissions into queued turn-cycles. It resolves
// (or creates) the session, wraps the submission in a Run, and enqueues the
// run on the session's lane.
type Gateway struct {
	sessions types.SessionStore
	Queue    *Queue
	Retry    *RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway wired to the session store with the given
// concurrency limit for simultaneous turn-cycles.
func New(sessions types.SessionStore, maxConcurrent int64) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Gateway{
		sessions: sessions,
		Queue:    NewQueue(maxConcurrent),
		Retry:    DefaultRetryPolicy(),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked when the turn-cycle produces a
// final answer.
func WithOnComplete(fn func(*types.TurnResult)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// WithOnError sets a callback invoked when the turn-cycle aborts.
func WithOnError(fn func(error)) RunOption {
	return func(r *Run) { r.OnError = fn }
}

// HandleInbound resolves or creates a session for the turn and enqueues a
// Run for asynchronous processing.
func (g *Gateway) HandleInbound(ctx context.Context, turn *types.InboundTurn, opts ...RunOption) (types.SessionID, error) {
	sessionID, _, err := g.sessions.GetOrCreate(ctx, turn.SessionID)
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	run := NewRun(sessionID, turn)
	for _, opt := range opts {
		opt(run)
	}
	if err := g.Queue.Enqueue(run); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Submit enqueues a turn and blocks until its cycle completes, fails, or
// ctx is cancelled. This is the synchronous surface used by request/response
// transports.
func (g *Gateway) Submit(ctx context.Context, turn *types.InboundTurn) (*types.TurnResult, error) {
	resultCh := make(chan *types.TurnResult, 1)
	errCh := make(chan error, 1)

	_, err := g.HandleInbound(ctx, turn,
		WithOnComplete(func(res *types.TurnResult) { resultCh <- res }),
		WithOnError(func(err error) { errCh <- err }),
	)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
