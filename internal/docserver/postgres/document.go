package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	documentDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/document"
	"github.com/frahmantamala/qr-document/internal/docserver"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) docserver.DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *documentDatamodel.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*documentDatamodel.Document, error) {
	var doc documentDatamodel.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) RecordReceipt(ctx context.Context, receipt *documentDatamodel.Receipt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&documentDatamodel.Receipt{}).Where("document_id = ?", receipt.DocumentID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return docserver.ErrAlreadyReceived
		}

		err := tx.Create(receipt).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return docserver.ErrAlreadyReceived
		}
		return err
	})
}
