// Package llm defines the text-completion backend interface.
//
// The backend is deliberately treated as a plain text function: tool calls
// are never negotiated at the protocol level, they are recovered from the
// reply text by internal/extract. A turn-cycle makes at most two calls, a
// primary completion and a follow-up that embeds tool results.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable is the taxonomy root for model-service failures
// (network, timeout, malformed payload). Implementations wrap it so callers
// can treat any backend outage as a turn-level failure.
var ErrBackendUnavailable = errors.New("llm backend unavailable")

// Mode distinguishes the two prompting phases of a turn-cycle.
type Mode string

const (
	// ModePrimary requests the first completion of a turn-cycle, which may
	// embed tool invocation markers.
	ModePrimary Mode = "primary"
	// ModeFollowUp requests a final natural-language answer that
	// incorporates tool results.
	ModeFollowUp Mode = "followup"
)

// Request carries one rendered prompt to the backend.
type Request struct {
	System string
	Prompt string
	Mode   Mode
}

// Response is the backend's free-form text reply.
type Response struct {
	Text string
}

// Provider defines the interface for text-completion backends.
// Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}
