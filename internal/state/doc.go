// Package state provides the process-wide in-memory session and audio
// artifact stores.
package state

import "github.com/user/voxchat/internal/types"

// Compile-time interface compliance checks.
var _ types.SessionStore = (*SessionStore)(nil)
var _ types.ArtifactStore = (*ArtifactStore)(nil)
