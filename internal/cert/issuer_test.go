package cert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/openlearn/openlearn-lms/internal/exam"
	"github.com/openlearn/openlearn-lms/internal/pdf"
	"github.com/openlearn/openlearn-lms/internal/roster"
)

type fakeCertStore struct {
	certs      map[string]Certificate // by id
	bySub      map[string]string      // submission id → cert id
	emailSent  map[string]int64
	insertErrs []error
}

func newFakeCertStore() *fakeCertStore {
	return &fakeCertStore{
		certs:     map[string]Certificate{},
		bySub:     map[string]string{},
		emailSent: map[string]int64{},
	}
}

func (s *fakeCertStore) Insert(_ context.Context, c Certificate) error {
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := s.bySub[c.SubmissionID]; ok {
		return ErrAlreadyIssued
	}
	s.certs[c.ID] = c
	s.bySub[c.SubmissionID] = c.ID
	return nil
}

func (s *fakeCertStore) GetByID(_ context.Context, id string) (Certificate, error) {
	c, ok := s.certs[id]
	if !ok {
		return Certificate{}, ErrCertificateNotFound
	}
	return c, nil
}

func (s *fakeCertStore) GetByNumber(_ context.Context, number string) (Certificate, error) {
	for _, c := range s.certs {
		if c.CertificateNumber == number {
			return c, nil
		}
	}
	return Certificate{}, ErrCertificateNotFound
}

func (s *fakeCertStore) ListByStudent(_ context.Context, studentID string) ([]Certificate, error) {
	var out []Certificate
	for _, c := range s.certs {
		if c.StudentID == studentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCertStore) ListByCourse(_ context.Context, courseID string) ([]Certificate, error) {
	var out []Certificate
	for _, c := range s.certs {
		if c.CourseID == courseID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCertStore) ExistsForSubmission(_ context.Context, submissionID string) (bool, error) {
	_, ok := s.bySub[submissionID]
	return ok, nil
}

func (s *fakeCertStore) SetFilePath(_ context.Context, id, path string) error {
	c, ok := s.certs[id]
	if !ok {
		return ErrCertificateNotFound
	}
	c.FilePath = path
	s.certs[id] = c
	return nil
}

func (s *fakeCertStore) MarkEmailSent(_ context.Context, id string, at int64) error {
	s.emailSent[id] = at
	return nil
}

func (s *fakeCertStore) Revoke(_ context.Context, id, adminID, reason string, at int64) error {
	c, ok := s.certs[id]
	if !ok {
		return ErrCertificateNotFound
	}
	c.Status = StatusRevoked
	c.RevokedBy = adminID
	c.RevocationReason = reason
	c.RevokedAt = at
	s.certs[id] = c
	return nil
}

func (s *fakeCertStore) ListPendingApprovals(_ context.Context) ([]PendingApproval, error) {
	return nil, nil
}

type fakeSubmissions struct {
	subs    map[string]exam.Submission
	flagged map[string]bool
}

func (f *fakeSubmissions) GetSubmission(_ context.Context, id string) (exam.Submission, error) {
	s, ok := f.subs[id]
	if !ok {
		return exam.Submission{}, exam.ErrSubmissionNotFound
	}
	return s, nil
}

func (f *fakeSubmissions) SetCertificateGenerated(_ context.Context, id string) error {
	if f.flagged == nil {
		f.flagged = map[string]bool{}
	}
	f.flagged[id] = true
	return nil
}

type fakeDirectory struct {
	users   map[string]roster.User
	courses map[string]roster.Course
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (roster.User, error) {
	u, ok := f.users[id]
	if !ok {
		return roster.User{}, roster.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeDirectory) GetCourse(_ context.Context, id string) (roster.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return roster.Course{}, roster.ErrCourseNotFound
	}
	return c, nil
}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(d pdf.Data) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + d.CertificateNumber), nil
}

type fakeBlobs struct {
	objects map[string][]byte
}

func (f *fakeBlobs) Put(key string, r io.Reader) (string, error) {
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	f.objects[key] = buf.Bytes()
	return key, nil
}

func (f *fakeBlobs) Get(key string) (io.ReadCloser, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeBlobs) Exists(key string) bool {
	_, ok := f.objects[key]
	return ok
}

func (f *fakeBlobs) SignedURL(key string) (string, error) {
	return "file://" + key, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type issuerFixture struct {
	issuer      *Issuer
	store       *fakeCertStore
	submissions *fakeSubmissions
	renderer    *fakeRenderer
	blobs       *fakeBlobs
	mailer      *fakeMailer
}

func newIssuerFixture() *issuerFixture {
	f := &issuerFixture{
		store: newFakeCertStore(),
		submissions: &fakeSubmissions{subs: map[string]exam.Submission{
			"sub-pass": {
				ID: "sub-pass", ExamID: "ex1", StudentID: "student-abc123", CourseID: "course-1",
				TotalMarks: 10, MarksObtained: 8, PassingMarks: 7, Passed: true, Graded: true,
			},
			"sub-fail": {
				ID: "sub-fail", ExamID: "ex1", StudentID: "student-abc123", CourseID: "course-1",
				TotalMarks: 10, MarksObtained: 4, PassingMarks: 7, Passed: false, Graded: true,
			},
			"sub-orphan": {
				ID: "sub-orphan", ExamID: "ex1", StudentID: "ghost", CourseID: "course-1",
				TotalMarks: 10, MarksObtained: 10, PassingMarks: 7, Passed: true, Graded: true,
			},
		}},
		renderer: &fakeRenderer{},
		blobs:    &fakeBlobs{},
		mailer:   &fakeMailer{},
	}
	directory := &fakeDirectory{
		users: map[string]roster.User{
			"student-abc123": {ID: "student-abc123", Name: "Ada Lovelace", Email: "ada@example.com", Role: roster.RoleStudent},
		},
		courses: map[string]roster.Course{
			"course-1": {ID: "course-1", Title: "Analytical Engines", InstructorID: "inst-1"},
		},
	}
	f.issuer = NewIssuer(f.store, f.submissions, directory, f.renderer, f.blobs, f.mailer, nil)
	f.issuer.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestIssueHappyPath(t *testing.T) {
	f := newIssuerFixture()
	res, err := f.issuer.Issue(context.Background(), "sub-pass", "admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if res.CertificateNumber != "CERT-20240315-abc123" {
		t.Errorf("certificate number = %q", res.CertificateNumber)
	}
	if !res.Rendered {
		t.Error("expected rendered")
	}
	if !res.EmailSent {
		t.Error("expected email sent")
	}
	c, err := f.store.GetByID(context.Background(), res.CertificateID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if c.Percentage != 80.0 {
		t.Errorf("percentage = %v, want 80", c.Percentage)
	}
	if !c.AdminApproved {
		t.Error("admin-issued certificate should be approved")
	}
	if c.FilePath == "" || !f.blobs.Exists(c.FilePath) {
		t.Errorf("rendered artifact missing at %q", c.FilePath)
	}
	if !f.submissions.flagged["sub-pass"] {
		t.Error("submission not flagged certificate_generated")
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != "ada@example.com" {
		t.Errorf("mail recipients = %v", f.mailer.sent)
	}
}

func TestIssuePreconditions(t *testing.T) {
	f := newIssuerFixture()

	if _, err := f.issuer.Issue(context.Background(), "nope", ""); !errors.Is(err, exam.ErrSubmissionNotFound) {
		t.Errorf("missing submission: got %v", err)
	}
	if _, err := f.issuer.Issue(context.Background(), "sub-fail", ""); !errors.Is(err, ErrNotPassed) {
		t.Errorf("failed submission: got %v", err)
	}
	if _, err := f.issuer.Issue(context.Background(), "sub-orphan", ""); !errors.Is(err, ErrDataIntegrity) {
		t.Errorf("orphaned submission: got %v", err)
	}

	if _, err := f.issuer.Issue(context.Background(), "sub-pass", ""); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if _, err := f.issuer.Issue(context.Background(), "sub-pass", ""); !errors.Is(err, ErrAlreadyIssued) {
		t.Errorf("second issue: got %v", err)
	}
}

func TestIssueWithoutAdminStaysPending(t *testing.T) {
	f := newIssuerFixture()
	res, err := f.issuer.Issue(context.Background(), "sub-pass", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c, _ := f.store.GetByID(context.Background(), res.CertificateID)
	if c.AdminApproved {
		t.Error("rule-triggered issuance should await approval")
	}
}

func TestIssueSurvivesRenderFailure(t *testing.T) {
	f := newIssuerFixture()
	f.renderer.err = errors.New("template corrupt")
	res, err := f.issuer.Issue(context.Background(), "sub-pass", "admin-1")
	if err != nil {
		t.Fatalf("Issue should succeed despite render failure: %v", err)
	}
	if res.Rendered {
		t.Error("Rendered should be false")
	}
	if res.RenderError == "" {
		t.Error("RenderError should carry the cause")
	}
	c, _ := f.store.GetByID(context.Background(), res.CertificateID)
	if c.FilePath != "" {
		t.Errorf("file path should stay empty, got %q", c.FilePath)
	}
}

func TestIssueSurvivesMailFailure(t *testing.T) {
	f := newIssuerFixture()
	f.mailer.err = errors.New("smtp down")
	res, err := f.issuer.Issue(context.Background(), "sub-pass", "admin-1")
	if err != nil {
		t.Fatalf("Issue should succeed despite mail failure: %v", err)
	}
	if res.EmailSent {
		t.Error("EmailSent should be false")
	}
	if _, ok := f.store.emailSent[res.CertificateID]; ok {
		t.Error("email_sent_at must not be stamped on failure")
	}
}

func TestRenderOnDemandIdempotent(t *testing.T) {
	f := newIssuerFixture()
	res, err := f.issuer.Issue(context.Background(), "sub-pass", "admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	callsAfterIssue := f.renderer.calls

	path, err := f.issuer.RenderOnDemand(context.Background(), res.CertificateID)
	if err != nil {
		t.Fatalf("RenderOnDemand: %v", err)
	}
	if !strings.HasSuffix(path, res.CertificateNumber+".pdf") {
		t.Errorf("path = %q", path)
	}
	if f.renderer.calls != callsAfterIssue {
		t.Error("existing artifact should not be re-rendered")
	}

	// Losing the blob triggers exactly one regeneration.
	delete(f.blobs.objects, path)
	again, err := f.issuer.RenderOnDemand(context.Background(), res.CertificateID)
	if err != nil {
		t.Fatalf("RenderOnDemand after blob loss: %v", err)
	}
	if again != path {
		t.Errorf("regenerated path = %q, want %q", again, path)
	}
	if f.renderer.calls != callsAfterIssue+1 {
		t.Errorf("renderer calls = %d, want %d", f.renderer.calls, callsAfterIssue+1)
	}
}

func TestRevokeOverwritesMetadata(t *testing.T) {
	f := newIssuerFixture()
	res, err := f.issuer.Issue(context.Background(), "sub-pass", "admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := f.issuer.Revoke(context.Background(), res.CertificateID, "admin-1", "plagiarism"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	c, _ := f.store.GetByID(context.Background(), res.CertificateID)
	if c.Status != StatusRevoked || c.RevocationReason != "plagiarism" {
		t.Errorf("after revoke: status=%q reason=%q", c.Status, c.RevocationReason)
	}

	if err := f.issuer.Revoke(context.Background(), res.CertificateID, "admin-2", "appeal denied"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	c, _ = f.store.GetByID(context.Background(), res.CertificateID)
	if c.RevokedBy != "admin-2" || c.RevocationReason != "appeal denied" {
		t.Errorf("re-revoke should restamp: by=%q reason=%q", c.RevokedBy, c.RevocationReason)
	}

	if err := f.issuer.Revoke(context.Background(), "missing", "admin-1", "x"); !errors.Is(err, ErrCertificateNotFound) {
		t.Errorf("revoking unknown cert: got %v", err)
	}
}

func TestGetByIDOrNumber(t *testing.T) {
	f := newIssuerFixture()
	res, err := f.issuer.Issue(context.Background(), "sub-pass", "admin-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := f.issuer.Get(context.Background(), res.CertificateID); err != nil {
		t.Errorf("by id: %v", err)
	}
	if _, err := f.issuer.Get(context.Background(), res.CertificateNumber); err != nil {
		t.Errorf("by number: %v", err)
	}
	if _, err := f.issuer.Get(context.Background(), "bogus"); !errors.Is(err, ErrCertificateNotFound) {
		t.Errorf("unknown: got %v", err)
	}
}

func TestCertificateNumberSuffix(t *testing.T) {
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := CertificateNumber(at, "abcdef123456"); got != "CERT-20240102-123456" {
		t.Errorf("long id: %q", got)
	}
	if got := CertificateNumber(at, "ab12"); got != "CERT-20240102-ab12" {
		t.Errorf("short id: %q", got)
	}
}
