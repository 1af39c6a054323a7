package exam

import "context"

type SubmissionFilter struct {
	StudentID string
	CourseID  string // optional narrowing for student views
	ExamID    string
}

// ExamUpdate carries a partial update. Nil fields are left untouched.
// Question changes are refused once a submission exists for the exam.
type ExamUpdate struct {
	Title           *string
	Description     *string
	Questions       *[]Question
	PassingPercent  *float64
	DurationMinutes *int
	ExamDate        *int64
	Deadline        *int64
	Status          *string
}

type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	ListCourseExams(ctx context.Context, courseID string) ([]Exam, error)
	ListInstructorExams(ctx context.Context, instructorID string) ([]Exam, error)
	DeleteExam(ctx context.Context, id string) error
	HasSubmissions(ctx context.Context, examID string) (bool, error)

	// InsertSubmission maps a storage-level uniqueness violation on
	// (exam_id, student_id) to ErrDuplicateSubmission.
	InsertSubmission(ctx context.Context, s Submission) error
	GetSubmission(ctx context.Context, id string) (Submission, error)
	GetSubmissionForStudent(ctx context.Context, examID, studentID string) (Submission, error)
	ListSubmissions(ctx context.Context, f SubmissionFilter) ([]Submission, error)
	ListExamSubmissions(ctx context.Context, examID string) ([]SubmissionOverview, error)
	UpdateSubmissionGrades(ctx context.Context, s Submission) error
	SetCertificateGenerated(ctx context.Context, submissionID string) error
}
