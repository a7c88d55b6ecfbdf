package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/user"
)

type Kind string

const (
	KindIssue Kind = "issue"
	KindScan  Kind = "scan"
)

func (k Kind) Valid() bool {
	return k == KindIssue || k == KindScan
}

// Session holds everything one page visit owns: the route user's identity,
// the issuance form and phase, and the scanning phase. Nothing in it is shared
// with another session.
type Session struct {
	ID           string                 `json:"id"`
	Kind         Kind                   `json:"kind"`
	Identity     user.Identity          `json:"identity"`
	Issuance     document.IssuanceState `json:"issuance"`
	Verification scan.VerificationState `json:"verification"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func New(kind Kind, userID string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		Kind:         kind,
		Identity:     user.NewIdentity(userID),
		Issuance:     document.NewIssuanceState(),
		Verification: scan.NewVerificationState(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy so callers never share pointers with stored state.
func (s *Session) Clone() *Session {
	c := *s

	if s.Identity.Record != nil {
		rec := *s.Identity.Record
		c.Identity.Record = &rec
	}
	if s.Identity.Err != nil {
		e := *s.Identity.Err
		c.Identity.Err = &e
	}

	if s.Issuance.FieldErrors != nil {
		c.Issuance.FieldErrors = append(c.Issuance.FieldErrors[:0:0], s.Issuance.FieldErrors...)
	}
	if s.Issuance.Document != nil {
		doc := *s.Issuance.Document
		c.Issuance.Document = &doc
	}
	if s.Issuance.Err != nil {
		e := *s.Issuance.Err
		c.Issuance.Err = &e
	}

	if s.Verification.Payload != nil {
		p := *s.Verification.Payload
		c.Verification.Payload = &p
	}
	if s.Verification.Outcome != nil {
		o := *s.Verification.Outcome
		c.Verification.Outcome = &o
	}
	if s.Verification.Err != nil {
		e := *s.Verification.Err
		c.Verification.Err = &e
	}

	return &c
}

// MutateFunc edits a session inside Store.Update. Returning an error discards the edit.
type MutateFunc func(s *Session) error

// Store keeps sessions between requests. Update is atomic per session: no
// other Update on the same id interleaves with fn.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn MutateFunc) (*Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
