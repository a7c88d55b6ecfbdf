package docserver

import (
	"context"
	"errors"

	documentDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/document"
	userDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/user"
)

var ErrAlreadyReceived = errors.New("document already received")

type UserRepository interface {
	// GetByID returns nil, nil when the user does not exist.
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	Upsert(ctx context.Context, u *userDatamodel.User) error
	Ping(ctx context.Context) error
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *documentDatamodel.Document) error
	// GetByID returns nil, nil when the document does not exist.
	GetByID(ctx context.Context, id string) (*documentDatamodel.Document, error)
	// RecordReceipt fails with ErrAlreadyReceived when the document already has a receipt.
	RecordReceipt(ctx context.Context, receipt *documentDatamodel.Receipt) error
}
