package slip

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/frahmantamala/qr-document/internal/document"
)

// Renderer lays out a printable slip for an issued document with its QR code.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render returns the PDF bytes. qrPNG is the encoded artifact reference.
func (r *Renderer) Render(doc document.IssuedDocument, qrPNG []byte) ([]byte, error) {
	if len(qrPNG) == 0 {
		return nil, fmt.Errorf("slip requires a qr image")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 15, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "DOCUMENT SLIP", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	rows := [][2]string{
		{"Document ID", doc.ID},
		{"Title", doc.Title},
		{"Type", string(doc.Type)},
		{"Amount", strconv.FormatFloat(doc.Amount, 'f', 2, 64)},
		{"Department", doc.Department},
		{"Issued", doc.IssuedAt.Format("2006-01-02 15:04 MST")},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(35, 7, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "1", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pageWidth, _ := pdf.GetPageSize()
	const qrSide = 60.0
	pdf.ImageOptions("qr", (pageWidth-qrSide)/2, pdf.GetY(), qrSide, qrSide, false, opts, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
