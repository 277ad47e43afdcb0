// Package storage defines keyed profile persistence with optimistic
// revisioning.
//
// Each saved document carries a version token. Saves name the token they
// loaded; a mismatch means another request persisted first and the save is
// rejected rather than silently losing its writes.
package storage

import (
	"context"

	apperrors "github.com/louisbranch/homebase/internal/platform/errors"
	"github.com/louisbranch/homebase/internal/profile"
)

// Version is the opaque optimistic-concurrency token for one stored profile.
type Version int64

// ErrNotFound indicates the requested profile does not exist.
var ErrNotFound = apperrors.New(apperrors.CodeProfileNotFound, "profile not found")

// ErrVersionConflict indicates the save lost an optimistic concurrency race:
// the stored version no longer matches the token the caller loaded.
var ErrVersionConflict = apperrors.New(apperrors.CodeVersionConflict, "profile version conflict")

// ProfileStore persists profile documents keyed by (account, profileId).
type ProfileStore interface {
	// GetProfile loads a profile document and its current version token.
	GetProfile(ctx context.Context, accountID, profileID string) (*profile.Profile, Version, error)

	// SaveProfile persists a document. The expected token must match the
	// stored version or the save fails with ErrVersionConflict. On success
	// the new version token is returned.
	SaveProfile(ctx context.Context, doc *profile.Profile, expected Version) (Version, error)

	// CreateProfile persists a new document at version 1. Creating an
	// existing (account, profileId) pair is an error.
	CreateProfile(ctx context.Context, doc *profile.Profile) (Version, error)
}
