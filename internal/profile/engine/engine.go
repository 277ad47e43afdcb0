// Package engine dispatches profile operations and reconciles revisions.
//
// The engine owns the request lifecycle the handlers stay out of: loading
// the primary document, running the operation, bumping and persisting every
// touched profile, and deciding whether the client gets an incremental
// change list or a full snapshot.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/profile/change"
	"github.com/louisbranch/homebase/internal/profile/op"
	"github.com/louisbranch/homebase/internal/storage"
)

// ResponseVersion is the fixed protocol envelope version.
const ResponseVersion = 85

// Request is one profile operation call.
type Request struct {
	AccountID string
	ProfileID string
	Operation string
	// QueryRevision is the client's last known revision, -1 when absent.
	QueryRevision int64
	Body          json.RawMessage
}

// MultiUpdate is the envelope for one secondary profile touched by an
// operation.
type MultiUpdate struct {
	ProfileRevision            int64           `json:"profileRevision"`
	ProfileID                  string          `json:"profileId"`
	ProfileChangesBaseRevision int64           `json:"profileChangesBaseRevision"`
	ProfileChanges             []change.Record `json:"profileChanges"`
	ProfileCommandRevision     int64           `json:"profileCommandRevision"`
}

// Response is the protocol envelope for the primary profile.
type Response struct {
	ProfileRevision            int64             `json:"profileRevision"`
	ProfileID                  string            `json:"profileId"`
	ProfileChangesBaseRevision int64             `json:"profileChangesBaseRevision"`
	ProfileChanges             []change.Record   `json:"profileChanges"`
	ProfileCommandRevision     int64             `json:"profileCommandRevision"`
	Notifications              []op.Notification `json:"notifications,omitempty"`
	MultiUpdate                []MultiUpdate     `json:"multiUpdate,omitempty"`
	ServerTime                 time.Time         `json:"serverTime"`
	ResponseVersion            int               `json:"responseVersion"`
}

// Engine runs operations against stored profiles.
type Engine struct {
	env      *op.Environment
	handlers map[string]op.Handler
	tracer   trace.Tracer
}

// New builds an engine over the shared handler environment.
func New(env *op.Environment) *Engine {
	return &Engine{
		env:      env,
		handlers: op.Registry(),
		tracer:   otel.Tracer("homebase/profile-engine"),
	}
}

// Dispatch runs one operation end to end.
//
// Secondary profiles are persisted before the primary so a late failure
// cannot return a response describing unsaved secondary state. Saves are
// guarded by version tokens; a conflict surfaces as VersionConflict and the
// client retries with a fresh queryRevision.
func (e *Engine) Dispatch(ctx context.Context, req Request) (*Response, error) {
	ctx, span := e.tracer.Start(ctx, "profile.dispatch", trace.WithAttributes(
		attribute.String("profile.operation", req.Operation),
		attribute.String("profile.id", req.ProfileID),
	))
	defer span.End()

	primary, version, err := e.env.Store.GetProfile(ctx, req.AccountID, req.ProfileID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	c := op.NewContext(e.env, primary, req.Body)
	if handler, ok := e.handlers[strings.ToLower(req.Operation)]; ok {
		if err := handler(ctx, c); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	now := e.env.Clock()

	var multiUpdate []MultiUpdate
	for _, secondary := range c.Secondaries() {
		if secondary.Log.Len() == 0 {
			continue
		}
		secondary.Profile.BumpRevision(now)
		if _, err := e.env.Store.SaveProfile(ctx, secondary.Profile, secondary.Version); err != nil {
			span.RecordError(err)
			return nil, err
		}
		multiUpdate = append(multiUpdate, MultiUpdate{
			ProfileRevision:            secondary.Profile.Rvn,
			ProfileID:                  secondary.Profile.ProfileID,
			ProfileChangesBaseRevision: secondary.BaseRvn,
			ProfileChanges:             secondary.Log.Records(),
			ProfileCommandRevision:     secondary.Profile.CommandRevision,
		})
	}

	changed := c.Log.Len() > 0
	if changed {
		primary.BumpRevision(now)
		if _, err := e.env.Store.SaveProfile(ctx, primary, version); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	// Stale client and nothing new this request: force a full resync.
	// Every other case, including the steady-state heartbeat, is an
	// incremental response based one revision back.
	changes := c.Log.Records()
	baseRevision := primary.Rvn - 1
	if !changed && req.QueryRevision != primary.Rvn-1 {
		changes = []change.Record{change.FullProfileUpdate(primary)}
		baseRevision = primary.Rvn
	}
	if changes == nil {
		changes = []change.Record{}
	}

	return &Response{
		ProfileRevision:            primary.Rvn,
		ProfileID:                  primary.ProfileID,
		ProfileChangesBaseRevision: baseRevision,
		ProfileChanges:             changes,
		ProfileCommandRevision:     primary.CommandRevision,
		Notifications:              c.Notifications,
		MultiUpdate:                multiUpdate,
		ServerTime:                 now.UTC(),
		ResponseVersion:            ResponseVersion,
	}, nil
}

// EnsureProfiles creates any missing namespace documents for an account.
// Existing profiles are left untouched.
func EnsureProfiles(ctx context.Context, store storage.ProfileStore, accountID string, bootstrap func(accountID, profileID string) (*profile.Profile, error), profileIDs ...string) error {
	for _, profileID := range profileIDs {
		_, _, err := store.GetProfile(ctx, accountID, profileID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		doc, err := bootstrap(accountID, profileID)
		if err != nil {
			return err
		}
		if _, err := store.CreateProfile(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
