package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/voxchat/internal/extract"
	"github.com/user/voxchat/internal/gateway"
	"github.com/user/voxchat/internal/prompt"
	"github.com/user/voxchat/internal/types"
	"github.com/user/voxchat/pkg/llm"
	"github.com/user/voxchat/pkg/tts"
)

// Runtime drives the per-session turn-cycle: primary completion, tool-call
// extraction, tool execution, follow-up completion, commit.
//
// The backend is a plain text function, so tool calling is a two-call
// protocol recovered after the fact: the primary reply may embed
// @tool({...}) markers, and a second completion folds the tool results into
// the final answer. Replies with no markers skip the second call entirely.
type Runtime struct {
	provider     llm.Provider
	engine       *prompt.Engine
	sessions     types.SessionStore
	artifacts    types.ArtifactStore
	registry     *Registry
	executor     *Executor
	speech       tts.Provider
	retry        *gateway.RetryPolicy
	modelTimeout time.Duration
}

// New creates a Runtime with the given dependencies. Voice is disabled
// until EnableVoice is called.
func New(
	provider llm.Provider,
	engine *prompt.Engine,
	sessions types.SessionStore,
	artifacts types.ArtifactStore,
	registry *Registry,
	executor *Executor,
	modelTimeout time.Duration,
) *Runtime {
	if modelTimeout <= 0 {
		modelTimeout = 60 * time.Second
	}
	return &Runtime{
		provider:     provider,
		engine:       engine,
		sessions:     sessions,
		artifacts:    artifacts,
		registry:     registry,
		executor:     executor,
		modelTimeout: modelTimeout,
	}
}

// EnableVoice turns on best-effort speech synthesis for final answers.
func (rt *Runtime) EnableVoice(p tts.Provider) {
	rt.speech = p
}

// SetRetry applies a retry policy to model calls. Nil disables retries.
func (rt *Runtime) SetRetry(p *gateway.RetryPolicy) {
	rt.retry = p
}

// ProcessRun executes one turn-cycle. This is the function passed to
// Queue.SetProcessor; the queue guarantees cycles for the same session
// never interleave.
//
// A returned error means the cycle aborted with no assistant turn
// committed; the already-committed user turn stays, so the session is
// never left partially written.
func (rt *Runtime) ProcessRun(run *gateway.Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Commit the user turn.
	userTurn := types.Turn{Role: types.RoleUser, Text: run.Turn.Text, At: time.Now()}
	if err := rt.sessions.Append(ctx, run.SessionID, userTurn); err != nil {
		return fmt.Errorf("append user turn: %w", err)
	}

	history, err := rt.sessions.History(ctx, run.SessionID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	// 2. Primary completion.
	primary, err := rt.generate(ctx, rt.engine.Primary(history, rt.toolInfos()))
	if err != nil {
		return fmt.Errorf("primary completion: %w", err)
	}

	// 3. Recover tool calls from the reply text.
	calls, residual := extract.Scan(primary.Text)
	var validated []extract.Call
	for _, call := range calls {
		if call.State == extract.StateParsed {
			validated = append(validated, call)
			continue
		}
		slog.Warn("malformed tool call skipped",
			"session_id", string(run.SessionID),
			"tool", call.Name,
			"offset", call.Start,
			"error", call.Err,
		)
	}

	final := primary.Text
	switch {
	case len(validated) > 0:
		// 4. Execute all validated calls, then ask for a final answer that
		// incorporates the results. If the follow-up call fails we return
		// the primary reply verbatim rather than losing the turn.
		results := rt.executor.ExecuteAll(ctx, validated)
		for _, res := range results {
			if res.Status == StatusError {
				slog.Info("tool call failed",
					"session_id", string(run.SessionID),
					"tool", res.Call.Name,
					"kind", string(res.ErrKind),
					"error", res.ErrMsg,
				)
			}
		}

		followUp, err := rt.generate(ctx, rt.engine.FollowUp(history, primary.Text, toOutcomes(results)))
		if err != nil {
			slog.Warn("follow-up completion failed, returning primary reply",
				"session_id", string(run.SessionID), "error", err)
		} else {
			final = followUp.Text
		}

	case len(calls) > 0:
		// Every candidate was malformed: answer with the surrounding prose
		// instead of echoing broken markers at the user. With no prose left
		// either, admit the failure rather than speak the raw markers.
		if residual != "" {
			final = residual
		} else {
			final = "Sorry, I had trouble completing that request. Please try asking again."
		}
	}

	// 5. Best-effort speech synthesis. A failure here never affects the
	// text answer.
	var audioID types.ArtifactID
	if rt.speech != nil {
		if res, err := rt.speech.Synthesize(ctx, final); err != nil {
			slog.Warn("speech synthesis failed", "session_id", string(run.SessionID), "error", err)
		} else if id, err := rt.artifacts.Put(ctx, res.Audio, res.Mime); err != nil {
			slog.Warn("store audio artifact failed", "session_id", string(run.SessionID), "error", err)
		} else {
			audioID = id
		}
	}

	// 6. Commit the assistant turn.
	assistantTurn := types.Turn{Role: types.RoleAssistant, Text: final, At: time.Now(), AudioID: audioID}
	if err := rt.sessions.Append(ctx, run.SessionID, assistantTurn); err != nil {
		return fmt.Errorf("append assistant turn: %w", err)
	}

	if run.OnComplete != nil {
		run.OnComplete(&types.TurnResult{
			SessionID: run.SessionID,
			Text:      final,
			AudioID:   audioID,
		})
	}
	return nil
}

// generate runs one model call with a bounded timeout, retrying transient
// failures per the configured policy.
func (rt *Runtime) generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var resp *llm.Response
	call := func() error {
		callCtx, cancel := context.WithTimeout(ctx, rt.modelTimeout)
		defer cancel()
		r, err := rt.provider.Generate(callCtx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}

	var err error
	if rt.retry != nil {
		err = rt.retry.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (rt *Runtime) toolInfos() []prompt.ToolInfo {
	tools := rt.registry.All()
	infos := make([]prompt.ToolInfo, len(tools))
	for i, t := range tools {
		infos[i] = prompt.ToolInfo{Name: t.Name(), Description: t.Description()}
	}
	return infos
}

func toOutcomes(results []Result) []prompt.Outcome {
	outcomes := make([]prompt.Outcome, len(results))
	for i, res := range results {
		o := prompt.Outcome{
			Name: res.Call.Name,
			Args: res.Call.RawArgs,
		}
		if res.Status == StatusError {
			o.Failed = true
			o.Output = res.ErrMsg
		} else {
			o.Output = res.Payload
		}
		outcomes[i] = o
	}
	return outcomes
}
