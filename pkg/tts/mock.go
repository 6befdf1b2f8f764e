package tts

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked. If nil, a short
	// fixed payload is returned.
	SynthesizeFunc func(ctx context.Context, text string) (*Result, error)

	mu    sync.Mutex
	texts []string
}

// Synthesize calls SynthesizeFunc and records the text.
func (m *Mock) Synthesize(ctx context.Context, text string) (*Result, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return &Result{Audio: []byte("mock-audio"), Mime: "audio/mpeg"}, nil
}

// Texts returns every text passed to Synthesize.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// WithError returns a mock whose Synthesize always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*Result, error) {
			return nil, err
		},
	}
}

var _ Provider = (*Mock)(nil)
