package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/pkg/export"
	"github.com/noah-isme/tclass-api/pkg/jobs"
	"github.com/noah-isme/tclass-api/pkg/mail"
)

// CertificateJobType tags queue jobs that render and mail a Certificate of Registration.
const CertificateJobType = "enrollment.certificate"

// CertificateKey is the storage key of the rendered certificate for a COR number.
func CertificateKey(cor string) string {
	return "cor/" + cor + ".pdf"
}

type enrollmentDetailFinder interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

type blobWriter interface {
	Save(key string, data []byte) (string, error)
}

// CertificateWorker bridges queue jobs to the COR renderer and the mailer.
type CertificateWorker struct {
	enrollments enrollmentDetailFinder
	renderer    certificateRenderer
	store       blobWriter
	sender      mail.Sender
	issuer      string
	logger      *zap.Logger
}

// NewCertificateWorker constructs a worker.
func NewCertificateWorker(enrollments enrollmentDetailFinder, renderer certificateRenderer, store blobWriter, sender mail.Sender, issuer string, logger *zap.Logger) *CertificateWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewCertificateRenderer()
	}
	return &CertificateWorker{
		enrollments: enrollments,
		renderer:    renderer,
		store:       store,
		sender:      sender,
		issuer:      issuer,
		logger:      logger,
	}
}

// Handle renders, stores and mails the certificate for the enrollment carried by the job.
func (w *CertificateWorker) Handle(ctx context.Context, job jobs.Job) error {
	enrollmentID := job.ID
	if id, ok := job.Payload.(string); ok && id != "" {
		enrollmentID = id
	}
	detail, err := w.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("load enrollment %s: %w", enrollmentID, err)
	}

	cert := export.Certificate{
		CORNumber:    detail.CORNumber,
		StudentName:  detail.UserName,
		StudentEmail: detail.UserEmail,
		ProgramTitle: detail.ProgramTitle,
		Status:       string(detail.Status),
		EnrolledAt:   detail.EnrolledAt,
		IssuedBy:     w.issuer,
	}
	if detail.CourseTitle != nil {
		cert.CourseTitle = *detail.CourseTitle
	}
	pdf, err := w.renderer.Render(cert)
	if err != nil {
		return err
	}
	if _, err := w.store.Save(CertificateKey(detail.CORNumber), pdf); err != nil {
		return fmt.Errorf("store certificate: %w", err)
	}

	if w.sender == nil {
		return nil
	}
	msg := mail.Message{
		To:      []mail.Address{{Name: detail.UserName, Email: detail.UserEmail}},
		Subject: fmt.Sprintf("Your enrollment in %s (%s)", detail.ProgramTitle, detail.CORNumber),
		Text: fmt.Sprintf("Hello %s,\n\nWe received your enrollment in %s. Your Certificate of Registration number is %s.\n"+
			"Your application is %s. The certificate is attached to this message.\n", detail.UserName, detail.ProgramTitle, detail.CORNumber, detail.Status),
		Attachments: []mail.Attachment{{
			Filename:    detail.CORNumber + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("mail certificate: %w", err)
	}
	w.logger.Info("certificate issued", zap.String("enrollment_id", detail.ID), zap.String("cor_number", detail.CORNumber))
	return nil
}
