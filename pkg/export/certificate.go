package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Certificate describes a Certificate of Registration document.
type Certificate struct {
	CORNumber    string
	StudentName  string
	StudentEmail string
	ProgramTitle string
	CourseTitle  string
	Status       string
	EnrolledAt   time.Time
	IssuedBy     string
}

// CertificateRenderer draws COR documents with an embedded QR code of the COR number.
type CertificateRenderer struct {
	qrSize int
}

// NewCertificateRenderer constructs a renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{qrSize: 256}
}

// Render returns the certificate as PDF bytes.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.CORNumber == "" {
		return nil, fmt.Errorf("certificate requires a COR number")
	}
	png, err := qrcode.Encode(cert.CORNumber, qrcode.Medium, r.qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	issuer := cert.IssuedBy
	if issuer == "" {
		issuer = "TClass Training Center"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(issuer), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "CERTIFICATE OF REGISTRATION", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Courier", "B", 14)
	pdf.CellFormat(0, 10, cert.CORNumber, "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Name", cert.StudentName},
		{"Email", cert.StudentEmail},
		{"Program", cert.ProgramTitle},
		{"Course", cert.CourseTitle},
		{"Status", cert.Status},
		{"Enrolled", cert.EnrolledAt.Format("January 2, 2006")},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(40, 8, row[0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, tr(row[1]), "", 1, "", false, 0, "")
	}

	name := "qr-" + cert.CORNumber
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pdf.ImageOptions(name, 145, pdf.GetY()+10, 45, 45, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Present this certificate together with a valid ID during orientation.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
