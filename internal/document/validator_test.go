package document_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/document"
)

func fieldNames(err error) []string {
	appErr, ok := internal.AsAppError(err)
	Expect(ok).To(BeTrue())
	names := []string{}
	for _, fe := range appErr.FieldErrors() {
		names = append(names, fe.Field)
	}
	return names
}

var _ = Describe("Validate", func() {
	It("should accept a complete candidate", func() {
		req, err := document.Validate(document.Candidate{Title: "Q3 payroll", Amount: "1500", Type: document.TypePayroll})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Title()).To(Equal("Q3 payroll"))
		Expect(req.Amount()).To(Equal(1500.0))
		Expect(req.Type()).To(Equal(document.TypePayroll))
	})

	It("should reject the initial form", func() {
		_, err := document.Validate(document.InitialCandidate())
		Expect(err).To(HaveOccurred())
		Expect(fieldNames(err)).To(ConsistOf("title", "amount"))
	})

	DescribeTable("accepts exactly non-empty title, amount >= 1 and a known type",
		func(c document.Candidate, invalid []string) {
			_, err := document.Validate(c)
			if len(invalid) == 0 {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(fieldNames(err)).To(ConsistOf(invalid))
		},
		Entry("minimum amount", document.Candidate{Title: "a", Amount: "1", Type: document.TypeMemorandum}, nil),
		Entry("decimal amount", document.Candidate{Title: "a", Amount: "1.5", Type: document.TypeVoucherBilling}, nil),
		Entry("whitespace title counts as non-empty", document.Candidate{Title: " ", Amount: "2", Type: document.TypePurchaseRequest}, nil),
		Entry("empty title", document.Candidate{Title: "", Amount: "2", Type: document.TypePayroll}, []string{"title"}),
		Entry("amount below one", document.Candidate{Title: "a", Amount: "0.5", Type: document.TypePayroll}, []string{"amount"}),
		Entry("amount not numeric", document.Candidate{Title: "a", Amount: "lots", Type: document.TypePayroll}, []string{"amount"}),
		Entry("amount empty", document.Candidate{Title: "a", Amount: "", Type: document.TypePayroll}, []string{"amount"}),
		Entry("amount NaN", document.Candidate{Title: "a", Amount: "NaN", Type: document.TypePayroll}, []string{"amount"}),
		Entry("amount Inf", document.Candidate{Title: "a", Amount: "Inf", Type: document.TypePayroll}, []string{"amount"}),
		Entry("amount infinity", document.Candidate{Title: "a", Amount: "-infinity", Type: document.TypePayroll}, []string{"amount"}),
		Entry("unknown type", document.Candidate{Title: "a", Amount: "5", Type: "INVOICE"}, []string{"type"}),
		Entry("lowercase type", document.Candidate{Title: "a", Amount: "5", Type: "payroll"}, []string{"type"}),
		Entry("everything wrong", document.Candidate{Amount: "-1", Type: ""}, []string{"title", "amount", "type"}),
	)

	It("should never substitute a default type for an invalid one", func() {
		_, err := document.Validate(document.Candidate{Title: "a", Amount: "5", Type: "BOGUS"})
		Expect(err).To(HaveOccurred())
	})

	It("should attach the department to a submission", func() {
		req, err := document.Validate(document.Candidate{Title: "memo", Amount: "10", Type: document.TypeMemorandum})
		Expect(err).NotTo(HaveOccurred())

		sub := req.Submission("FINANCE")
		Expect(sub).To(Equal(document.Submission{Title: "memo", Amount: 10, Type: document.TypeMemorandum, Department: "FINANCE"}))
	})
})

var _ = Describe("Candidate JSON", func() {
	It("should accept the amount as number or string", func() {
		var c document.Candidate
		Expect(json.Unmarshal([]byte(`{"title":"t","amount":12.5,"type":"PAYROLL"}`), &c)).To(Succeed())
		Expect(c.Amount).To(Equal(document.Amount("12.5")))

		Expect(json.Unmarshal([]byte(`{"title":"t","amount":"12.","type":"PAYROLL"}`), &c)).To(Succeed())
		Expect(c.Amount).To(Equal(document.Amount("12.")))
	})

	It("should write a parseable amount as a number", func() {
		b, err := json.Marshal(document.InitialCandidate())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(MatchJSON(`{"title":"","amount":0,"type":"MEMORANDUM"}`))
	})

	DescribeTable("keeps non-finite amounts as text",
		func(raw string) {
			b, err := json.Marshal(document.Candidate{Title: "t", Amount: document.Amount(raw), Type: document.TypePayroll})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(MatchJSON(`{"title":"t","amount":"` + raw + `","type":"PAYROLL"}`))
		},
		Entry("NaN", "NaN"),
		Entry("Inf", "Inf"),
		Entry("negative infinity", "-infinity"),
	)

	It("should reject an amount that is neither number nor string", func() {
		var c document.Candidate
		Expect(json.Unmarshal([]byte(`{"amount":true}`), &c)).NotTo(Succeed())
	})
})

var _ = Describe("TypeOptions", func() {
	It("should list all four types with MEMORANDUM as the default", func() {
		options := document.TypeOptions()
		Expect(options).To(HaveLen(4))

		defaults := 0
		for _, o := range options {
			Expect(o.Value.Valid()).To(BeTrue())
			if o.Default {
				defaults++
				Expect(o.Value).To(Equal(document.TypeMemorandum))
			}
		}
		Expect(defaults).To(Equal(1))
	})
})
