package cert

import "errors"

const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrNotPassed           = errors.New("student did not pass the exam")
	ErrAlreadyIssued       = errors.New("certificate already generated")
	ErrDataIntegrity       = errors.New("student or course not found")
)

// Certificate is a denormalized snapshot taken at issuance; later edits
// to the student or course never rewrite an issued certificate.
type Certificate struct {
	ID                string  `json:"id"`
	CertificateNumber string  `json:"certificate_number"` // CERT-YYYYMMDD-<last 6 of student id>; display-only, not unique
	SubmissionID      string  `json:"submission_id"`
	StudentID         string  `json:"student_id"`
	CourseID          string  `json:"course_id"`
	StudentName       string  `json:"student_name"`
	StudentEmail      string  `json:"student_email"`
	CourseTitle       string  `json:"course_title"`
	MarksObtained     float64 `json:"marks_obtained"`
	TotalMarks        int     `json:"total_marks"`
	Percentage        float64 `json:"percentage"`
	FilePath          string  `json:"file_path,omitempty"` // blob key, set on first successful render
	AdminID           string  `json:"admin_id"`
	AdminApproved     bool    `json:"admin_approved"`
	EmailSent         bool    `json:"email_sent"`
	EmailSentAt       int64   `json:"email_sent_at,omitempty"`
	Status            string  `json:"status"` // active|revoked
	RevokedBy         string  `json:"revoked_by,omitempty"`
	RevocationReason  string  `json:"revocation_reason,omitempty"`
	RevokedAt         int64   `json:"revoked_at,omitempty"`
	IssuedAt          int64   `json:"issued_at"`
}

// PendingApproval is a passed, graded submission that has no
// certificate yet.
type PendingApproval struct {
	SubmissionID  string  `json:"submission_id"`
	StudentID     string  `json:"student_id"`
	StudentName   string  `json:"student_name"`
	StudentEmail  string  `json:"student_email"`
	CourseID      string  `json:"course_id"`
	CourseTitle   string  `json:"course_title"`
	MarksObtained float64 `json:"marks_obtained"`
	TotalMarks    int     `json:"total_marks"`
	SubmittedAt   int64   `json:"submitted_at"`
}
