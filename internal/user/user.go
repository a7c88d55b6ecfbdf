package user

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/frahmantamala/qr-document/internal"
)

// Record is the directory entry for one user. It is never edited after it is fetched.
type Record struct {
	ID         string `json:"id"`
	Department string `json:"department"`
}

type ResolutionState string

const (
	// StateUnknown means no user id was supplied, so resolution is never attempted.
	StateUnknown   ResolutionState = "unknown"
	StatePending   ResolutionState = "pending"
	StateResolving ResolutionState = "resolving"
	StateResolved  ResolutionState = "resolved"
	StateFailed    ResolutionState = "failed"
)

// Identity is the resolution state of the route user for one session.
type Identity struct {
	UserID string             `json:"user_id"`
	State  ResolutionState    `json:"state"`
	Record *Record            `json:"record,omitempty"`
	Err    *internal.AppError `json:"error,omitempty"`
}

func NewIdentity(userID string) Identity {
	if strings.TrimSpace(userID) == "" {
		return Identity{State: StateUnknown}
	}
	return Identity{UserID: userID, State: StatePending}
}

func (i Identity) Ready() bool {
	return i.State == StateResolved && i.Record != nil
}

// Require returns the resolved record, the stored resolution failure, or
// ErrIdentityUnresolved while resolution has not finished.
func (i Identity) Require() (Record, error) {
	switch {
	case i.Ready():
		return *i.Record, nil
	case i.State == StateFailed && i.Err != nil:
		return Record{}, i.Err
	default:
		return Record{}, internal.ErrIdentityUnresolved
	}
}

// Directory is the remote user lookup.
type Directory interface {
	GetUser(ctx context.Context, userID string) (Record, error)
}

type Resolver struct {
	directory Directory
	group     singleflight.Group
	logger    *slog.Logger
}

func NewResolver(directory Directory, logger *slog.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		logger:    logger,
	}
}

// Resolve looks the user up once. Failures come back unmodified and are never retried here.
// Concurrent lookups of the same id share one remote call. The shared call is
// detached from any single caller's cancellation; each caller only stops
// waiting when its own ctx ends.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Record, error) {
	if strings.TrimSpace(userID) == "" {
		return Record{}, internal.ErrIdentityUnresolved
	}

	shareCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(userID, func() (interface{}, error) {
		return r.directory.GetUser(shareCtx, userID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		r.logger.Info("stopped waiting for user lookup", "user_id", userID, "error", ctx.Err())
		return Record{}, internal.NewTransportError("user lookup cancelled", ctx.Err())
	}

	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		r.logger.Warn("user resolution failed", "user_id", userID, "error", err, "shared", shared)
		if _, ok := internal.AsAppError(err); ok {
			return Record{}, err
		}
		return Record{}, internal.NewTransportError("user lookup failed", err)
	}

	rec := v.(Record)
	if rec.Department == "" {
		r.logger.Error("user record has no department", "user_id", userID)
		return Record{}, internal.NewTransportError("user record is missing a department", nil)
	}

	r.logger.Info("user resolved", "user_id", rec.ID, "department", rec.Department)
	return rec, nil
}

// Ensure drives id to a terminal state. An identity that already resolved or
// failed is returned as-is so a session never looks its user up twice.
func (r *Resolver) Ensure(ctx context.Context, id *Identity) error {
	switch id.State {
	case StateResolved:
		return nil
	case StateFailed:
		return id.Err
	case StateUnknown:
		return internal.ErrIdentityUnresolved
	}

	id.State = StateResolving
	rec, err := r.Resolve(ctx, id.UserID)
	if err != nil {
		appErr, ok := internal.AsAppError(err)
		if !ok {
			appErr = internal.NewTransportError("user lookup failed", err)
		}
		id.State = StateFailed
		id.Err = appErr
		return appErr
	}

	id.State = StateResolved
	id.Record = &rec
	return nil
}
