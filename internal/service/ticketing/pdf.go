package ticketing

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderTicketPDF renders one ticket as an A6 landscape PDF: the human
// readable facts on the left, the QR image on the right. Pure function of
// the stored ticket fields, so rendering never touches the database twice
// for the same ticket.
func RenderTicketPDF(p Payload, qrPNG []byte) ([]byte, error) {
	const op = "ticketing.RenderTicketPDF"

	pdf := gofpdf.New("L", "mm", "A6", "")
	pdf.SetMargins(8, 8, 8)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, p.EventName, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Ticket %s", p.TicketNumber), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Booking %s", p.BookingReference), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, p.TypeName, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Issued %s", p.IssuedAt.UTC().Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")

	if len(qrPNG) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
		// bottom-right corner of the A6 landscape page
		pdf.ImageOptions("qr", 108, 62, 32, 32, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}
