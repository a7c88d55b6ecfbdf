package workflow

import (
	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/session"
	"github.com/frahmantamala/qr-document/internal/user"
)

type PageStatus string

const (
	PageReady     PageStatus = "ready"
	PageResolving PageStatus = "resolving"
	PageNotFound  PageStatus = "not_found"
	PageError     PageStatus = "error"
)

const genericFailureMessage = "Something went wrong while loading this page. Please try again later."

// PageView is what a page renders for a session. Form and Scan are only set
// once the route user has been resolved.
type PageView struct {
	SessionID string             `json:"session_id"`
	Kind      session.Kind       `json:"kind"`
	Status    PageStatus         `json:"status"`
	Message   string             `json:"message,omitempty"`
	Error     *internal.AppError `json:"error,omitempty"`
	User      *user.Record       `json:"user,omitempty"`
	CanSubmit bool               `json:"can_submit"`
	Form      *FormView          `json:"form,omitempty"`
	Scan      *ScanView          `json:"scan,omitempty"`
}

type FormView struct {
	Values      document.Candidate         `json:"values"`
	FieldErrors []internal.ValidationError `json:"field_errors,omitempty"`
	Types       []document.TypeOption      `json:"types"`
	Phase       document.Phase             `json:"phase"`
	Document    *document.IssuedDocument   `json:"document,omitempty"`
	Artifact    document.ArtifactRef       `json:"artifact,omitempty"`
	Error       *internal.AppError         `json:"error,omitempty"`
}

type ScanView struct {
	Active          bool               `json:"active"`
	Phase           scan.Phase         `json:"phase"`
	CanStart        bool               `json:"can_start"`
	Outcome         *scan.Outcome      `json:"outcome,omitempty"`
	Error           *internal.AppError `json:"error,omitempty"`
	DiscardedFrames int                `json:"discarded_frames"`
}

func NewPageView(sess *session.Session) PageView {
	view := PageView{
		SessionID: sess.ID,
		Kind:      sess.Kind,
	}

	id := sess.Identity
	switch id.State {
	case user.StateUnknown:
		view.Status = PageNotFound
		view.Message = "No user was selected."
		return view
	case user.StatePending, user.StateResolving:
		view.Status = PageResolving
		return view
	case user.StateFailed:
		view.Error = id.Err
		if id.Err != nil && id.Err.Type == internal.ErrorTypeNotFound {
			view.Status = PageNotFound
			view.Message = id.Err.Message
		} else {
			view.Status = PageError
			view.Message = genericFailureMessage
		}
		return view
	}

	view.Status = PageReady
	view.User = id.Record

	switch sess.Kind {
	case session.KindIssue:
		is := sess.Issuance
		view.CanSubmit = id.Ready() && !is.InFlight()
		view.Form = &FormView{
			Values:      is.Form,
			FieldErrors: is.FieldErrors,
			Types:       document.TypeOptions(),
			Phase:       is.Phase,
			Document:    is.Document,
			Artifact:    is.Artifact,
			Error:       is.Err,
		}
	case session.KindScan:
		vs := sess.Verification
		view.CanSubmit = id.Ready() && vs.Active && !vs.InFlight()
		view.Scan = &ScanView{
			Active:          vs.Active,
			Phase:           vs.Phase,
			CanStart:        id.Ready() && !vs.Active && !vs.InFlight(),
			Outcome:         vs.Outcome,
			Error:           vs.Err,
			DiscardedFrames: vs.Discarded,
		}
	}

	return view
}
