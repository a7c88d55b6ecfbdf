package document

import (
	"strconv"
	"strings"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/core/common/validation"
)

const MinAmount = 1

// Validate checks every field of c and reports all violations at once. The
// returned error is an *internal.AppError whose FieldErrors list each offending field.
func Validate(c Candidate) (Request, error) {
	v := validation.NewValidator()
	v.Field("title", c.Title).MinLength(1, internal.ErrCodeInvalidTitle)
	v.Field("amount", string(c.Amount)).
		Numeric(internal.ErrCodeInvalidAmount).
		MinFloat(MinAmount, internal.ErrCodeAmountTooLow)
	v.Field("type", string(c.Type)).OneOf(typeNames(), internal.ErrCodeInvalidType)

	if appErr := v.Validate(); appErr != nil {
		return Request{}, appErr
	}

	amount, _ := strconv.ParseFloat(strings.TrimSpace(string(c.Amount)), 64)
	return Request{
		title:  c.Title,
		amount: amount,
		kind:   c.Type,
	}, nil
}

// Submission attaches the issuing department to r.
func (r Request) Submission(department string) Submission {
	return Submission{
		Title:      r.title,
		Amount:     r.amount,
		Type:       r.kind,
		Department: department,
	}
}
