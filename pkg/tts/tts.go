// Package tts provides a minimal interface for speech-synthesis providers.
//
// Synthesis is best-effort from the orchestrator's point of view: a failed
// synthesis never affects the text answer, it only means the turn carries no
// audio artifact.
package tts

import (
	"context"
)

// Result is a complete synthesis result.
type Result struct {
	// Audio contains the raw audio payload.
	Audio []byte
	// Mime is the payload's MIME type (e.g. audio/mpeg).
	Mime string
}

// Provider defines the speech-synthesis interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete payload.
	Synthesize(ctx context.Context, text string) (*Result, error)
}
