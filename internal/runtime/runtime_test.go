package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/voxchat/internal/gateway"
	"github.com/user/voxchat/internal/prompt"
	"github.com/user/voxchat/internal/state"
	"github.com/user/voxchat/internal/types"
	"github.com/user/voxchat/pkg/llm"
	"github.com/user/voxchat/pkg/tts"
)

// scriptedProvider replays a fixed sequence of responses and records every
// request it receives.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []*llm.Request
}

func (p *scriptedProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	i := len(p.requests) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return nil, fmt.Errorf("no scripted response for call %d", i)
	}
	return &llm.Response{Text: p.responses[i]}, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *scriptedProvider) request(i int) *llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

type testRig struct {
	rt       *Runtime
	provider *scriptedProvider
	sessions *state.SessionStore
	session  types.SessionID
}

func newTestRig(t *testing.T, responses []string, errs []error) *testRig {
	t.Helper()

	engine, err := prompt.New("test-model", 8000, 512)
	if err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry()
	registry.Register(&fakeTool{
		name:   "calculator",
		desc:   "Evaluate a math expression",
		schema: `{"type": "object", "properties": {"expression": {"type": "string"}}, "required": ["expression"]}`,
		execute: func(_ context.Context, args json.RawMessage) (string, error) {
			var p struct {
				Expression string `json:"expression"`
			}
			json.Unmarshal(args, &p)
			if strings.Contains(p.Expression, "/0") || strings.Contains(p.Expression, "/ 0") {
				return "", fmt.Errorf("division by zero")
			}
			return p.Expression + " = 35", nil
		},
	})
	registry.Register(&fakeTool{
		name:   "weather",
		desc:   "Get current weather",
		schema: `{"type": "object", "properties": {"location": {"type": "string"}}, "required": ["location"]}`,
		execute: func(_ context.Context, args json.RawMessage) (string, error) {
			var p struct {
				Location string `json:"location"`
			}
			json.Unmarshal(args, &p)
			return "Weather in " + p.Location + ": 22°C, sunny", nil
		},
	})

	sessions := state.NewSessionStore()
	artifacts := state.NewArtifactStore()
	provider := &scriptedProvider{responses: responses, errs: errs}
	rt := New(provider, engine, sessions, artifacts, registry,
		NewExecutor(registry, time.Second, 4), 5*time.Second)

	id, _, err := sessions.GetOrCreate(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	return &testRig{rt: rt, provider: provider, sessions: sessions, session: id}
}

func (r *testRig) process(t *testing.T, text string) *types.TurnResult {
	t.Helper()
	var result *types.TurnResult
	run := gateway.NewRun(r.session, &types.InboundTurn{SessionID: r.session, Text: text})
	run.OnComplete = func(tr *types.TurnResult) { result = tr }
	if err := r.rt.ProcessRun(run); err != nil {
		t.Fatalf("ProcessRun: %v", err)
	}
	return result
}

func (r *testRig) history(t *testing.T) []types.Turn {
	t.Helper()
	turns, err := r.sessions.History(context.Background(), r.session)
	if err != nil {
		t.Fatal(err)
	}
	return turns
}

func TestProcessRunNoToolCalls(t *testing.T) {
	rig := newTestRig(t, []string{"Hello! How can I help you today?"}, nil)

	result := rig.process(t, "hi there")
	if result.Text != "Hello! How can I help you today?" {
		t.Errorf("unexpected final text: %q", result.Text)
	}
	if rig.provider.calls() != 1 {
		t.Errorf("expected exactly 1 model call, got %d", rig.provider.calls())
	}
	if rig.provider.request(0).Mode != llm.ModePrimary {
		t.Errorf("expected primary mode, got %s", rig.provider.request(0).Mode)
	}

	turns := rig.history(t)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != types.RoleUser || turns[1].Role != types.RoleAssistant {
		t.Error("expected user then assistant turn")
	}
}

func TestProcessRunTwoTools(t *testing.T) {
	primary := `Let me check both. @calculator({"expression": "20 + 15"}) and @weather({"location": "Boston"})`
	rig := newTestRig(t, []string{primary, "20 + 15 is 35, and Boston is 22°C and sunny."}, nil)

	result := rig.process(t, "Calculate 20 + 15 and tell me the weather in Boston")
	if !strings.Contains(result.Text, "35") || !strings.Contains(result.Text, "sunny") {
		t.Errorf("unexpected final text: %q", result.Text)
	}
	if rig.provider.calls() != 2 {
		t.Fatalf("expected 2 model calls, got %d", rig.provider.calls())
	}

	followUp := rig.provider.request(1)
	if followUp.Mode != llm.ModeFollowUp {
		t.Errorf("expected followup mode, got %s", followUp.Mode)
	}
	if !strings.Contains(followUp.Prompt, "20 + 15 = 35") {
		t.Errorf("expected calculator result in follow-up prompt:\n%s", followUp.Prompt)
	}
	if !strings.Contains(followUp.Prompt, "Weather in Boston") {
		t.Errorf("expected weather result in follow-up prompt:\n%s", followUp.Prompt)
	}

	turns := rig.history(t)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[1].Text != result.Text {
		t.Error("committed assistant turn should match the delivered text")
	}
}

func TestProcessRunToolErrorStillCommits(t *testing.T) {
	primary := `Sure: @calculator({"expression": "1/0"})`
	rig := newTestRig(t, []string{primary, "That expression fails: division by zero."}, nil)

	result := rig.process(t, "what is 1/0")
	if !strings.Contains(result.Text, "division by zero") {
		t.Errorf("unexpected final text: %q", result.Text)
	}

	followUp := rig.provider.request(1)
	if !strings.Contains(followUp.Prompt, "error") {
		t.Errorf("expected error marker in follow-up prompt:\n%s", followUp.Prompt)
	}

	if len(rig.history(t)) != 2 {
		t.Error("expected assistant turn committed despite tool failure")
	}
}

func TestProcessRunUnknownTool(t *testing.T) {
	primary := `@stocks({"symbol": "GOOG"})`
	rig := newTestRig(t, []string{primary, "I do not have a stocks tool."}, nil)

	result := rig.process(t, "price of GOOG?")
	if result.Text != "I do not have a stocks tool." {
		t.Errorf("unexpected final text: %q", result.Text)
	}
	followUp := rig.provider.request(1)
	if !strings.Contains(followUp.Prompt, "unknown tool") {
		t.Errorf("expected unknown tool error in follow-up prompt:\n%s", followUp.Prompt)
	}
}

func TestProcessRunMalformedOnlyUsesResidual(t *testing.T) {
	primary := `The answer is below. @calculator({"expression": )`
	rig := newTestRig(t, []string{primary}, nil)

	result := rig.process(t, "compute something")
	if rig.provider.calls() != 1 {
		t.Errorf("expected no follow-up call, got %d calls", rig.provider.calls())
	}
	if strings.Contains(result.Text, "@calculator") {
		t.Errorf("broken marker leaked into final text: %q", result.Text)
	}
	if !strings.Contains(result.Text, "The answer is below.") {
		t.Errorf("expected residual prose, got %q", result.Text)
	}
}

func TestProcessRunMalformedOnlyNoResidual(t *testing.T) {
	primary := `@calculator({"expression": oops})`
	rig := newTestRig(t, []string{primary}, nil)

	result := rig.process(t, "compute something")
	if rig.provider.calls() != 1 {
		t.Errorf("expected no follow-up call, got %d calls", rig.provider.calls())
	}
	if strings.Contains(result.Text, "@calculator") {
		t.Errorf("broken marker leaked into final text: %q", result.Text)
	}
	if result.Text == "" {
		t.Error("expected a fallback answer, got empty text")
	}
}

func TestProcessRunUnterminatedMarkerStillRunsLaterTool(t *testing.T) {
	primary := `a @calculator({"expression": ) b @weather({"location": "Boston"}) c`
	followUp := "It is 22°C and sunny in Boston."
	rig := newTestRig(t, []string{primary, followUp}, nil)

	result := rig.process(t, "what's the weather in Boston?")
	if rig.provider.calls() != 2 {
		t.Fatalf("expected follow-up call, got %d calls", rig.provider.calls())
	}
	if !strings.Contains(rig.provider.request(1).Prompt, "Weather in Boston") {
		t.Errorf("weather result missing from follow-up prompt: %q", rig.provider.request(1).Prompt)
	}
	if result.Text != followUp {
		t.Errorf("final text = %q", result.Text)
	}
}

func TestProcessRunPrimaryFailure(t *testing.T) {
	rig := newTestRig(t, nil, []error{fmt.Errorf("%w: connect: connection refused", llm.ErrBackendUnavailable)})

	run := gateway.NewRun(rig.session, &types.InboundTurn{SessionID: rig.session, Text: "hello"})
	err := rig.rt.ProcessRun(run)
	if err == nil {
		t.Fatal("expected error from failed primary completion")
	}

	turns := rig.history(t)
	if len(turns) != 1 {
		t.Fatalf("expected only the user turn, got %d turns", len(turns))
	}
	if turns[0].Role != types.RoleUser {
		t.Error("expected surviving turn to be the user turn")
	}
}

func TestProcessRunFollowUpFailureFallsBack(t *testing.T) {
	primary := `@calculator({"expression": "20 + 15"})`
	rig := newTestRig(t, []string{primary}, []error{nil, fmt.Errorf("%w: timeout", llm.ErrBackendUnavailable)})

	result := rig.process(t, "20 + 15?")
	if result.Text != primary {
		t.Errorf("expected primary reply verbatim, got %q", result.Text)
	}
	if len(rig.history(t)) != 2 {
		t.Error("expected assistant turn committed despite follow-up failure")
	}
}

func TestProcessRunVoiceSynthesis(t *testing.T) {
	rig := newTestRig(t, []string{"Spoken answer."}, nil)
	mock := &tts.Mock{}
	rig.rt.EnableVoice(mock)

	result := rig.process(t, "say something")
	if result.AudioID == "" {
		t.Fatal("expected an audio artifact id")
	}
	if len(mock.Texts()) != 1 || mock.Texts()[0] != "Spoken answer." {
		t.Errorf("expected final text synthesized, got %v", mock.Texts())
	}

	turns := rig.history(t)
	if turns[1].AudioID != result.AudioID {
		t.Error("expected committed turn to carry the audio id")
	}
}

func TestProcessRunSynthesisFailureKeepsText(t *testing.T) {
	rig := newTestRig(t, []string{"Still a fine answer."}, nil)
	rig.rt.EnableVoice(tts.WithError(tts.ErrSynthesisFailed))

	result := rig.process(t, "say something")
	if result.AudioID != "" {
		t.Errorf("expected no audio id, got %q", result.AudioID)
	}
	if result.Text != "Still a fine answer." {
		t.Errorf("synthesis failure must not affect text: %q", result.Text)
	}
	if len(rig.history(t)) != 2 {
		t.Error("expected assistant turn committed")
	}
}

func TestProcessRunRetriesTransientFailure(t *testing.T) {
	rig := newTestRig(t,
		[]string{"", "Recovered answer."},
		[]error{fmt.Errorf("connection refused"), nil})
	rig.rt.SetRetry(&gateway.RetryPolicy{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	})

	result := rig.process(t, "hello")
	if result.Text != "Recovered answer." {
		t.Errorf("expected retried answer, got %q", result.Text)
	}
	if rig.provider.calls() != 2 {
		t.Errorf("expected 2 attempts, got %d", rig.provider.calls())
	}
}
