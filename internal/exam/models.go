package exam

import "github.com/openlearn/openlearn-lms/internal/grading"

const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_answer"`
	Marks         int      `json:"marks"` // 1..100
	Explanation   string   `json:"explanation,omitempty"`
}

type Exam struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"course_id"`
	InstructorID    string     `json:"instructor_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Questions       []Question `json:"questions"`
	TotalMarks      int        `json:"total_marks"`      // always Σ question marks
	PassingMarks    float64    `json:"passing_marks"`    // TotalMarks × PassingPercent / 100
	PassingPercent  float64    `json:"passing_percent"`
	DurationMinutes int        `json:"duration_minutes"`
	ExamDate        int64      `json:"exam_date,omitempty"` // unix; 0 = unscheduled
	Deadline        int64      `json:"deadline,omitempty"`
	Status          string     `json:"status"` // draft|active|completed
	CreatedAt       int64      `json:"created_at,omitempty"`
	UpdatedAt       int64      `json:"updated_at,omitempty"`
}

// Sanitized returns a copy safe to serve to students: answer keys and
// explanations stripped.
func (e Exam) Sanitized() Exam {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].CorrectOption = ""
		qs[i].Explanation = ""
	}
	e.Questions = qs
	return e
}

type Submission struct {
	ID                   string                 `json:"id"`
	ExamID               string                 `json:"exam_id"`
	StudentID            string                 `json:"student_id"`
	CourseID             string                 `json:"course_id"`
	ExamTitle            string                 `json:"exam_title"`
	Answers              []grading.GradedAnswer `json:"answers"`
	TotalMarks           int                    `json:"total_marks"`
	MarksObtained        float64                `json:"marks_obtained"` // always Σ answer marks
	PassingMarks         float64                `json:"passing_marks"`
	Passed               bool                   `json:"passed"` // recomputed, never set directly
	Graded               bool                   `json:"graded"`
	CertificateGenerated bool                   `json:"certificate_generated"`
	SubmittedAt          int64                  `json:"submitted_at"`
	GradedAt             int64                  `json:"graded_at,omitempty"`
}

// SubmissionOverview is the instructor-facing row: a submission joined
// with the student identity and the certificate back-reference.
type SubmissionOverview struct {
	Submission
	StudentName   string `json:"student_name"`
	StudentEmail  string `json:"student_email"`
	CertificateID string `json:"certificate_id,omitempty"`
}
