package docserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	userDatamodel "github.com/frahmantamala/qr-document/internal/core/datamodel/user"
	"github.com/frahmantamala/qr-document/internal/docapi"
	"github.com/frahmantamala/qr-document/internal/docserver"
	"github.com/frahmantamala/qr-document/internal/document"
	"github.com/frahmantamala/qr-document/internal/transport"
	"github.com/frahmantamala/qr-document/pkg/logger"
)

var _ = Describe("Handler", func() {
	var router *chi.Mux

	BeforeEach(func() {
		users := newMemUsers(&userDatamodel.User{ID: "user-1", Department: "FINANCE", IsActive: true})
		service := docserver.NewService(users, newMemDocuments(), logger.Discard())
		h := docserver.NewHandler(transport.NewBaseHandler(logger.Discard()), service)

		router = chi.NewRouter()
		router.Get(docapi.PathGetUser, h.GetUser)
		router.Post(docapi.PathGenerateQR, h.GenerateQR)
		router.Post(docapi.PathScanQR, h.ScanQR)
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("should serve get-user", func() {
		rec := serve(http.MethodGet, docapi.PathGetUser+"?userId=user-1", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"id":"user-1","department":"FINANCE"}`))

		rec = serve(http.MethodGet, docapi.PathGetUser+"?userId=ghost", "")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should issue and then verify a document over http", func() {
		rec := serve(http.MethodPost, docapi.PathGenerateQR, `{"title":"Memo","amount":10,"type":"MEMORANDUM","department":"FINANCE"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var receipt document.Receipt
		Expect(json.Unmarshal(rec.Body.Bytes(), &receipt)).To(Succeed())
		Expect(receipt.URL).To(ContainSubstring(receipt.ID))

		body := `{"documentId":"` + receipt.ID + `","userDepartment":"FINANCE"}`
		rec = serve(http.MethodPost, docapi.PathScanQR, body)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"message":"document received"}`))

		rec = serve(http.MethodPost, docapi.PathScanQR, body)
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("should answer 400 for an invalid body", func() {
		rec := serve(http.MethodPost, docapi.PathGenerateQR, `[]`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
