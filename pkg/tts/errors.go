package tts

import (
	"errors"
	"fmt"
)

// ErrSynthesisFailed is the taxonomy root for speech-service failures.
var ErrSynthesisFailed = errors.New("tts: synthesis failed")

// ErrNoAPIKey is returned when the API key is missing.
var ErrNoAPIKey = errors.New("tts: API key required")

// APIError represents an error response from a TTS API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts: API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrSynthesisFailed
}
