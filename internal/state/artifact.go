// internal/state/artifact.go
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/voxchat/internal/types"
)

// ErrArtifactNotFound is returned for unknown or expired artifact IDs.
var ErrArtifactNotFound = fmt.Errorf("artifact not found")

// ArtifactStore keeps synthesized-audio payloads in memory, keyed by an
// opaque UUID. Artifacts are write-once, read-many; a TTL sweeper reclaims
// them once the transport has had time to fetch the audio.
type ArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[types.ArtifactID]*types.Artifact
}

// NewArtifactStore creates an empty ArtifactStore.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{artifacts: make(map[types.ArtifactID]*types.Artifact)}
}

// Put stores a payload and returns its fresh ID. IDs are UUIDs, so
// concurrent puts never collide.
func (a *ArtifactStore) Put(_ context.Context, data []byte, mime string) (types.ArtifactID, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty artifact payload")
	}

	id := types.NewArtifactID()
	a.mu.Lock()
	a.artifacts[id] = &types.Artifact{
		ID:        id,
		Data:      data,
		Mime:      mime,
		CreatedAt: time.Now(),
	}
	a.mu.Unlock()
	return id, nil
}

// Get returns the artifact for the given ID.
func (a *ArtifactStore) Get(_ context.Context, id types.ArtifactID) (*types.Artifact, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	art, ok := a.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	return art, nil
}

// Sweep removes artifacts older than maxAge and returns how many were removed.
func (a *ArtifactStore) Sweep(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, art := range a.artifacts {
		if art.CreatedAt.Before(cutoff) {
			delete(a.artifacts, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (a *ArtifactStore) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := a.Sweep(maxAge); n > 0 {
					slog.Debug("evicted expired audio artifacts", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
