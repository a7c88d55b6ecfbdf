package main_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/qr-document/api"
	"github.com/frahmantamala/qr-document/internal"
	documentDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/document"
	userDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/user"
	"github.com/frahmantamala/qr-document/internal/core/events"
	"github.com/frahmantamala/qr-document/internal/docapi"
	"github.com/frahmantamala/qr-document/internal/docserver"
	docserverPostgres "github.com/frahmantamala/qr-document/internal/docserver/postgres"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/metrics"
	"github.com/frahmantamala/qr-document/internal/scan"
	"github.com/frahmantamala/qr-document/internal/session"
	"github.com/frahmantamala/qr-document/internal/transport"
	"github.com/frahmantamala/qr-document/internal/transport/middleware"
	"github.com/frahmantamala/qr-document/internal/transport/rest"
	"github.com/frahmantamala/qr-document/internal/user"
	"github.com/frahmantamala/qr-document/internal/workflow"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

type directoryUsers struct {
	mu    sync.Mutex
	users map[string]userDatamodel.User
}

func (d *directoryUsers) GetByID(_ context.Context, id string) (*userDatamodel.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (d *directoryUsers) Upsert(_ context.Context, u *userDatamodel.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = *u
	return nil
}

func (d *directoryUsers) Ping(context.Context) error { return nil }

var _ = Describe("Issue and verify workflow", func() {
	var (
		docServer      *httptest.Server
		workflowServer *httptest.Server
		bus            *events.EventBus
		m              *metrics.Metrics
	)

	BeforeEach(func() {
		lg := logger.Discard()

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&documentDatamodel.Document{}, &documentDatamodel.Receipt{})).To(Succeed())

		users := &directoryUsers{users: map[string]userDatamodel.User{
			"clerk-1":   {ID: "clerk-1", Name: "Clerk", Department: "FINANCE", IsActive: true},
			"finance-2": {ID: "finance-2", Name: "Receiver", Department: "FINANCE", IsActive: true},
			"hr-1":      {ID: "hr-1", Name: "Other", Department: "HR", IsActive: true},
		}}
		stand := docserver.NewService(users, docserverPostgres.NewDocumentRepository(db), lg)
		docRouter := chi.NewRouter()
		rest.RegisterDocServerRoutes(docRouter, docserver.NewHandler(transport.NewBaseHandler(lg), stand), rest.Options{}, lg)
		docServer = httptest.NewServer(docRouter)

		bus = events.NewEventBus(lg)
		m = metrics.New()
		m.Subscribe(bus)

		client := docapi.NewClient(docapi.Config{BaseURL: docServer.URL, Timeout: 5 * time.Second}, m, lg)
		service := workflow.NewService(workflow.Dependencies{
			Store:        session.NewMemoryStore(time.Hour, lg),
			Resolver:     user.NewResolver(client, lg),
			Issuance:     document.NewCoordinator(client, bus, lg),
			Verification: scan.NewCoordinator(client, bus, time.Second, lg),
			Metrics:      m,
			Logger:       lg,
		})

		doc, err := middleware.LoadOpenAPI(context.Background(), api.OpenAPI)
		Expect(err).NotTo(HaveOccurred())
		validator, err := middleware.RequestValidator(doc, lg)
		Expect(err).NotTo(HaveOccurred())

		router := chi.NewRouter()
		rest.RegisterRoutes(router, workflow.NewHandler(transport.NewBaseHandler(lg), service), rest.Options{
			Validator:      validator,
			Metrics:        m,
			MetricsPath:    "/metrics",
			MetricsHandler: m.Handler(),
		}, lg)
		workflowServer = httptest.NewServer(router)
	})

	AfterEach(func() {
		workflowServer.Close()
		docServer.Close()
		bus.Wait()
	})

	call := func(method, path, body string) (int, []byte) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req, err := http.NewRequest(method, workflowServer.URL+path, reader)
		Expect(err).NotTo(HaveOccurred())
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, data
	}

	view := func(data []byte) workflow.PageView {
		var v workflow.PageView
		Expect(json.Unmarshal(data, &v)).To(Succeed())
		return v
	}

	issueDocument := func(userID string) string {
		status, data := call(http.MethodPost, "/api/v1/generate-qr/"+userID, "")
		Expect(status).To(Equal(http.StatusCreated))
		id := view(data).SessionID

		status, _ = call(http.MethodPut, "/api/v1/sessions/"+id+"/form", `{"title":"Payroll June","amount":1500000,"type":"PAYROLL"}`)
		Expect(status).To(Equal(http.StatusOK))

		status, data = call(http.MethodPost, "/api/v1/sessions/"+id+"/issue", "")
		Expect(status).To(Equal(http.StatusCreated))
		form := view(data).Form
		Expect(form.Phase).To(Equal(document.PhaseSucceeded))
		Expect(form.Document.Department).To(Equal("FINANCE"))
		return string(form.Artifact)
	}

	scanAs := func(userID, frame string) *scan.Outcome {
		status, data := call(http.MethodPost, "/api/v1/scan-qr/"+userID, "")
		Expect(status).To(Equal(http.StatusCreated))
		id := view(data).SessionID

		status, _ = call(http.MethodPost, "/api/v1/sessions/"+id+"/scan/start", "")
		Expect(status).To(Equal(http.StatusOK))

		body, err := json.Marshal(workflow.FrameRequest{Text: frame})
		Expect(err).NotTo(HaveOccurred())
		status, data = call(http.MethodPost, "/api/v1/sessions/"+id+"/scan/frames", string(body))
		Expect(status).To(Equal(http.StatusOK))

		v := view(data)
		Expect(v.Scan.Active).To(BeFalse())
		return v.Scan.Outcome
	}

	It("should issue a document and accept it once in the originating department", func() {
		artifact := issueDocument("clerk-1")

		payload, err := scan.ParsePayload(artifact)
		Expect(err).NotTo(HaveOccurred())

		refused := scanAs("hr-1", artifact)
		Expect(refused.Accepted).To(BeFalse())
		Expect(refused.Code).To(Equal(internal.ErrCodeDepartmentDenied))

		accepted := scanAs("finance-2", artifact)
		Expect(accepted.Accepted).To(BeTrue())
		Expect(accepted.DocumentID).To(Equal(payload.DocumentID))
		Expect(accepted.Message).To(Equal(docserver.MessageReceived))

		again := scanAs("finance-2", artifact)
		Expect(again.Accepted).To(BeFalse())
		Expect(again.Code).To(Equal(internal.ErrCodeAlreadyScanned))
	})

	It("should show not found for an unknown route user", func() {
		status, data := call(http.MethodPost, "/api/v1/generate-qr/nobody", "")
		Expect(status).To(Equal(http.StatusCreated))

		v := view(data)
		Expect(v.Status).To(Equal(workflow.PageNotFound))
		Expect(v.Form).To(BeNil())
	})

	It("should reject a frame body without text before it reaches the session", func() {
		status, data := call(http.MethodPost, "/api/v1/scan-qr/hr-1", "")
		Expect(status).To(Equal(http.StatusCreated))
		id := view(data).SessionID

		status, _ = call(http.MethodPost, "/api/v1/sessions/"+id+"/scan/frames", `{}`)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("should count issued documents and scan outcomes", func() {
		artifact := issueDocument("clerk-1")
		scanAs("finance-2", artifact)
		bus.Wait()

		_, data := call(http.MethodGet, "/metrics", "")
		Expect(string(data)).To(ContainSubstring(`qr_document_documents_issued_total{department="FINANCE",type="PAYROLL"} 1`))
		Expect(string(data)).To(ContainSubstring(`qr_document_scan_outcomes_total{outcome="accepted"} 1`))
	})
})
