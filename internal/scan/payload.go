package scan

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/frahmantamala/qr-document/internal"
)

// Payload is the document reference carried by a scanned code.
type Payload struct {
	DocumentID string `json:"document_id"`
}

var errMissingID = errors.New(`payload has no "id" string`)

// ParsePayload extracts the document id from decoded QR text of the form {"id":"..."}.
// Anything else yields ErrMalformedPayload.
func ParsePayload(text string) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil {
		return Payload{}, internal.ErrMalformedPayload.WithCause(err)
	}

	raw, ok := fields["id"]
	if !ok {
		return Payload{}, internal.ErrMalformedPayload.WithCause(errMissingID)
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil || strings.TrimSpace(id) == "" {
		return Payload{}, internal.ErrMalformedPayload.WithCause(errMissingID)
	}

	return Payload{DocumentID: id}, nil
}

// EncodePayload is the inverse of ParsePayload.
func EncodePayload(documentID string) string {
	b, _ := json.Marshal(struct {
		ID string `json:"id"`
	}{ID: documentID})
	return string(b)
}
