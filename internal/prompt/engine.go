// Package prompt assembles token-budgeted prompts for the two phases of a
// turn-cycle: the primary completion that may embed tool markers, and the
// follow-up completion that turns tool results into a final answer.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/voxchat/internal/types"
	"github.com/user/voxchat/pkg/llm"
)

// ToolInfo describes one registered tool for the system prompt.
type ToolInfo struct {
	Name        string
	Description string
}

// Outcome is one tool result rendered into the follow-up prompt.
type Outcome struct {
	Name   string
	Args   string
	Output string
	Failed bool
}

// Engine renders prompts within a token budget.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates a prompt engine. model selects the tokenizer (unknown models
// fall back to cl100k_base); maxTokens is the backend's context window and
// reserve is held back for the model's reply.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Primary renders the first request of a turn-cycle. turns is the session
// history including the just-appended user turn.
func (e *Engine) Primary(turns []types.Turn, tools []ToolInfo) *llm.Request {
	system := primarySystem(tools)
	return &llm.Request{
		System: system,
		Prompt: e.transcript(turns, e.budgetAfter(system)) + "Assistant:",
		Mode:   llm.ModePrimary,
	}
}

// FollowUp renders the second request: the conversation, the primary reply,
// and one rendered outcome per executed call in original order.
func (e *Engine) FollowUp(turns []types.Turn, primaryReply string, outcomes []Outcome) *llm.Request {
	var results strings.Builder
	results.WriteString("Tool Results:\n")
	for _, o := range outcomes {
		status := "ok"
		if o.Failed {
			status = "error"
		}
		fmt.Fprintf(&results, "%s(%s) -> %s: %s\n", o.Name, o.Args, status, o.Output)
	}

	tail := fmt.Sprintf("Assistant: %s\n\n%s\nAssistant:", primaryReply, results.String())
	budget := e.budgetAfter(followUpSystem) - e.countTokens(tail)

	return &llm.Request{
		System: followUpSystem,
		Prompt: e.transcript(turns, budget) + tail,
		Mode:   llm.ModeFollowUp,
	}
}

// budgetAfter returns the token budget left for the transcript once the
// system prompt and the reply reserve are accounted for.
func (e *Engine) budgetAfter(system string) int {
	return e.maxTokens - e.reserve - e.countTokens(system)
}

// transcript renders turns as a "User:/Assistant:" dialogue, keeping the
// most recent turns that fit the budget. Turns are only ever dropped from
// the oldest end, never reordered.
func (e *Engine) transcript(turns []types.Turn, budget int) string {
	var kept []string
	used := 0
	for i := len(turns) - 1; i >= 0; i-- {
		line := renderTurn(turns[i])
		tokens := e.countTokens(line)
		if used+tokens > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, line)
		used += tokens
	}

	var sb strings.Builder
	for i := len(kept) - 1; i >= 0; i-- {
		sb.WriteString(kept[i])
	}
	return sb.String()
}

func renderTurn(turn types.Turn) string {
	switch turn.Role {
	case types.RoleAssistant:
		return fmt.Sprintf("Assistant: %s\n\n", turn.Text)
	default:
		return fmt.Sprintf("User: %s\n\n", turn.Text)
	}
}
