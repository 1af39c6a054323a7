package cert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn-lms/internal/audit"
	"github.com/openlearn/openlearn-lms/internal/exam"
	"github.com/openlearn/openlearn-lms/internal/pdf"
	"github.com/openlearn/openlearn-lms/internal/roster"
	"github.com/openlearn/openlearn-lms/internal/storage"
)

type SubmissionSource interface {
	GetSubmission(ctx context.Context, id string) (exam.Submission, error)
	SetCertificateGenerated(ctx context.Context, submissionID string) error
}

type Directory interface {
	GetUser(ctx context.Context, id string) (roster.User, error)
	GetCourse(ctx context.Context, id string) (roster.Course, error)
}

type Renderer interface {
	Render(d pdf.Data) ([]byte, error)
}

// Mailer delivers notifications. Send failures are logged, never
// surfaced to issuance callers.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Issuer mediates the Submission → Certificate transition and the
// approval/revocation state that follows it.
type Issuer struct {
	store       Store
	submissions SubmissionSource
	directory   Directory
	renderer    Renderer
	blobs       storage.BlobStore
	mailer      Mailer // nil disables notifications
	auditLog    *audit.Log
	now         func() time.Time
}

func NewIssuer(store Store, submissions SubmissionSource, directory Directory,
	renderer Renderer, blobs storage.BlobStore, mailer Mailer, auditLog *audit.Log) *Issuer {
	return &Issuer{
		store:       store,
		submissions: submissions,
		directory:   directory,
		renderer:    renderer,
		blobs:       blobs,
		mailer:      mailer,
		auditLog:    auditLog,
		now:         time.Now,
	}
}

// IssueResult separates the core operation's outcome from its
// best-effort side effects: a certificate can exist with the render or
// the email still pending.
type IssueResult struct {
	CertificateID     string `json:"certificate_id"`
	CertificateNumber string `json:"certificate_number"`
	Rendered          bool   `json:"rendered"`
	RenderError       string `json:"render_error,omitempty"`
	EmailSent         bool   `json:"email_sent"`
}

// Issue mints a certificate for a passed, graded submission.
// Preconditions are checked in order; the first failure short-circuits.
// A render or email failure never rolls back the certificate record.
func (i *Issuer) Issue(ctx context.Context, submissionID, adminID string) (IssueResult, error) {
	sub, err := i.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return IssueResult{}, err
	}
	if !sub.Passed {
		return IssueResult{}, ErrNotPassed
	}
	exists, err := i.store.ExistsForSubmission(ctx, submissionID)
	if err != nil {
		return IssueResult{}, err
	}
	if exists {
		return IssueResult{}, ErrAlreadyIssued
	}
	student, err := i.directory.GetUser(ctx, sub.StudentID)
	if err != nil {
		return IssueResult{}, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	course, err := i.directory.GetCourse(ctx, sub.CourseID)
	if err != nil {
		return IssueResult{}, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}

	now := i.now()
	c := Certificate{
		ID:                uuid.NewString(),
		CertificateNumber: CertificateNumber(now, sub.StudentID),
		SubmissionID:      sub.ID,
		StudentID:         sub.StudentID,
		CourseID:          sub.CourseID,
		StudentName:       student.Name,
		StudentEmail:      student.Email,
		CourseTitle:       course.Title,
		MarksObtained:     sub.MarksObtained,
		TotalMarks:        sub.TotalMarks,
		Percentage:        round2(sub.MarksObtained / float64(sub.TotalMarks) * 100),
		AdminID:           adminID,
		AdminApproved:     adminID != "", // auto-rule issuance stays pending approval
		Status:            StatusActive,
		IssuedAt:          now.Unix(),
	}
	if err := i.store.Insert(ctx, c); err != nil {
		return IssueResult{}, err
	}
	if err := i.submissions.SetCertificateGenerated(ctx, sub.ID); err != nil {
		log.Printf("cert: flag submission %s: %v", sub.ID, err)
	}

	res := IssueResult{CertificateID: c.ID, CertificateNumber: c.CertificateNumber}

	// Best-effort render: the certificate exists in "pending render"
	// state until RenderOnDemand succeeds.
	if _, err := i.renderAndStore(ctx, c); err != nil {
		res.RenderError = err.Error()
		log.Printf("cert: render %s: %v", c.ID, err)
	} else {
		res.Rendered = true
	}

	if i.mailer != nil {
		subject := fmt.Sprintf("Your certificate for %s", c.CourseTitle)
		body := fmt.Sprintf("Congratulations %s!\n\nYour certificate %s for %s (%.2f%%) has been issued.\n",
			c.StudentName, c.CertificateNumber, c.CourseTitle, c.Percentage)
		if err := i.mailer.Send(ctx, c.StudentEmail, subject, body); err != nil {
			log.Printf("cert: email %s to %s: %v", c.ID, c.StudentEmail, err)
		} else {
			if err := i.store.MarkEmailSent(ctx, c.ID, i.now().Unix()); err != nil {
				log.Printf("cert: mark email sent %s: %v", c.ID, err)
			}
			res.EmailSent = true
		}
	}

	i.record(ctx, audit.TypeCertificateIssued, c.ID, map[string]any{
		"submission_id": sub.ID, "student_id": sub.StudentID,
		"certificate_number": c.CertificateNumber, "percentage": c.Percentage,
	})
	return res, nil
}

// Revoke transitions active→revoked and stamps the revocation
// metadata. Re-revoking overwrites reason and timestamp; the record is
// retained (soft delete).
func (i *Issuer) Revoke(ctx context.Context, certificateID, adminID, reason string) error {
	if err := i.store.Revoke(ctx, certificateID, adminID, reason, i.now().Unix()); err != nil {
		return err
	}
	i.record(ctx, audit.TypeCertificateRevoked, certificateID, map[string]any{
		"revoked_by": adminID, "reason": reason,
	})
	return nil
}

// RenderOnDemand returns the recorded blob key if the artifact still
// exists, otherwise renders once and persists the new key. It never
// re-renders an already-rendered certificate.
func (i *Issuer) RenderOnDemand(ctx context.Context, certificateID string) (string, error) {
	c, err := i.store.GetByID(ctx, certificateID)
	if err != nil {
		return "", err
	}
	if c.FilePath != "" && i.blobs.Exists(c.FilePath) {
		return c.FilePath, nil
	}
	return i.renderAndStore(ctx, c)
}

func (i *Issuer) renderAndStore(ctx context.Context, c Certificate) (string, error) {
	data, err := i.renderer.Render(pdf.Data{
		StudentName:       c.StudentName,
		CourseTitle:       c.CourseTitle,
		CertificateNumber: c.CertificateNumber,
		MarksObtained:     c.MarksObtained,
		TotalMarks:        c.TotalMarks,
		Percentage:        c.Percentage,
		IssuedAt:          time.Unix(c.IssuedAt, 0),
	})
	if err != nil {
		return "", err
	}
	key := "certificates/" + c.CertificateNumber + ".pdf"
	if _, err := i.blobs.Put(key, bytes.NewReader(data)); err != nil {
		return "", err
	}
	if err := i.store.SetFilePath(ctx, c.ID, key); err != nil {
		return "", err
	}
	return key, nil
}

func (i *Issuer) Get(ctx context.Context, idOrNumber string) (Certificate, error) {
	c, err := i.store.GetByID(ctx, idOrNumber)
	if errors.Is(err, ErrCertificateNotFound) {
		return i.store.GetByNumber(ctx, idOrNumber)
	}
	return c, err
}

func (i *Issuer) ListByStudent(ctx context.Context, studentID string) ([]Certificate, error) {
	return i.store.ListByStudent(ctx, studentID)
}

func (i *Issuer) ListByCourse(ctx context.Context, courseID string) ([]Certificate, error) {
	return i.store.ListByCourse(ctx, courseID)
}

func (i *Issuer) PendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	return i.store.ListPendingApprovals(ctx)
}

func (i *Issuer) record(ctx context.Context, typ, key string, payload any) {
	if i.auditLog == nil {
		return
	}
	if err := i.auditLog.Record(ctx, typ, key, payload); err != nil {
		log.Printf("audit: %s %s: %v", typ, key, err)
	}
}

// CertificateNumber derives the human-readable identifier. Two
// same-day issuances for the same student could collide; the
// submission-level uniqueness constraint is the real integrity
// guarantee and this number stays display-only.
func CertificateNumber(t time.Time, studentID string) string {
	suffix := studentID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("CERT-%s-%s", t.Format("20060102"), suffix)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
