// internal/types/interfaces.go
package types

import (
	"context"
)

type SessionStore interface {
	GetOrCreate(ctx context.Context, id SessionID) (SessionID, bool, error)
	Get(ctx context.Context, id SessionID) (*Session, error)
	History(ctx context.Context, id SessionID) ([]Turn, error)
	Append(ctx context.Context, id SessionID, turn Turn) error
	Clear(ctx context.Context, id SessionID) error
	List(ctx context.Context) ([]*Session, error)
}

type ArtifactStore interface {
	Put(ctx context.Context, data []byte, mime string) (ArtifactID, error)
	Get(ctx context.Context, id ArtifactID) (*Artifact, error)
}
