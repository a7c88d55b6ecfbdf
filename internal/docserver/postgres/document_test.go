package postgres_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	documentDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/document"
	"github.com/frahmantamala/qr-document/internal/docserver"
	docserverPostgres "github.com/frahmantamala/qr-document/internal/docserver/postgres"
)

var _ = Describe("Document Repository", func() {
	var (
		db   *gorm.DB
		repo docserver.DocumentRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&documentDatamodel.Document{}, &documentDatamodel.Receipt{})).To(Succeed())

		repo = docserverPostgres.NewDocumentRepository(db)
		ctx = context.Background()
	})

	newDocument := func(id string) *documentDatamodel.Document {
		return &documentDatamodel.Document{
			ID:               id,
			Title:            "Q3 payroll",
			Amount:           1500,
			Type:             "PAYROLL",
			DepartmentOrigin: "FINANCE",
		}
	}

	Describe("Create and GetByID", func() {
		It("should store and load a document", func() {
			Expect(repo.Create(ctx, newDocument("doc-1"))).To(Succeed())

			doc, err := repo.GetByID(ctx, "doc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).NotTo(BeNil())
			Expect(doc.Title).To(Equal("Q3 payroll"))
			Expect(doc.DepartmentOrigin).To(Equal("FINANCE"))
			Expect(doc.CreatedAt).NotTo(BeZero())
		})

		It("should return nil for an unknown document", func() {
			doc, err := repo.GetByID(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc).To(BeNil())
		})

		It("should reject a duplicate id", func() {
			Expect(repo.Create(ctx, newDocument("doc-1"))).To(Succeed())
			Expect(repo.Create(ctx, newDocument("doc-1"))).NotTo(Succeed())
		})
	})

	Describe("RecordReceipt", func() {
		BeforeEach(func() {
			Expect(repo.Create(ctx, newDocument("doc-1"))).To(Succeed())
		})

		It("should record the first receipt", func() {
			receipt := &documentDatamodel.Receipt{DocumentID: "doc-1", Department: "FINANCE"}
			Expect(repo.RecordReceipt(ctx, receipt)).To(Succeed())
			Expect(receipt.ID).To(BeNumerically(">", 0))
		})

		It("should refuse a second receipt for the same document", func() {
			Expect(repo.RecordReceipt(ctx, &documentDatamodel.Receipt{DocumentID: "doc-1", Department: "FINANCE"})).To(Succeed())

			err := repo.RecordReceipt(ctx, &documentDatamodel.Receipt{DocumentID: "doc-1", Department: "FINANCE"})
			Expect(err).To(MatchError(docserver.ErrAlreadyReceived))

			var count int64
			Expect(db.Model(&documentDatamodel.Receipt{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})
})
