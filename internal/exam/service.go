package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn-lms/internal/audit"
	"github.com/openlearn/openlearn-lms/internal/grading"
)

// Service owns the exam lifecycle and the grading path. Every call runs
// to completion inside the request; the only race (pre-check vs insert
// for duplicate submissions) is settled by the storage uniqueness
// constraint, which the store maps back to ErrDuplicateSubmission.
type Service struct {
	store          Store
	auditLog       *audit.Log
	passingPercent float64 // default when an exam omits its own
	now            func() time.Time
}

func NewService(store Store, auditLog *audit.Log, passingPercent float64) *Service {
	if passingPercent <= 0 {
		passingPercent = 70
	}
	return &Service{store: store, auditLog: auditLog, passingPercent: passingPercent, now: time.Now}
}

type CreateExamInput struct {
	CourseID        string
	InstructorID    string
	Title           string
	Description     string
	Questions       []Question
	PassingPercent  float64 // 0 → service default
	DurationMinutes int
	ExamDate        int64
	Deadline        int64
	Status          string
}

func (s *Service) CreateExam(ctx context.Context, in CreateExamInput) (Exam, error) {
	total, err := validateQuestions(in.Questions)
	if err != nil {
		return Exam{}, err
	}
	pct := in.PassingPercent
	if pct <= 0 {
		pct = s.passingPercent
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	duration := in.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	now := s.now().Unix()
	e := Exam{
		ID:              uuid.NewString(),
		CourseID:        in.CourseID,
		InstructorID:    in.InstructorID,
		Title:           in.Title,
		Description:     in.Description,
		Questions:       in.Questions,
		TotalMarks:      total,
		PassingMarks:    round2(float64(total) * pct / 100),
		PassingPercent:  pct,
		DurationMinutes: duration,
		ExamDate:        in.ExamDate,
		Deadline:        in.Deadline,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.PutExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

// UpdateExam applies a partial update. Question (and threshold) changes
// are refused once any submission exists, so graded submissions never
// desynchronize from the definition they were graded against.
func (s *Service) UpdateExam(ctx context.Context, examID string, upd ExamUpdate) (Exam, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return Exam{}, err
	}
	if upd.Questions != nil || upd.PassingPercent != nil {
		locked, err := s.store.HasSubmissions(ctx, examID)
		if err != nil {
			return Exam{}, err
		}
		if locked {
			return Exam{}, ErrExamLocked
		}
	}
	if upd.Title != nil {
		e.Title = *upd.Title
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.DurationMinutes != nil {
		e.DurationMinutes = *upd.DurationMinutes
	}
	if upd.ExamDate != nil {
		e.ExamDate = *upd.ExamDate
	}
	if upd.Deadline != nil {
		e.Deadline = *upd.Deadline
	}
	if upd.Status != nil {
		e.Status = *upd.Status
	}
	if upd.Questions != nil {
		total, err := validateQuestions(*upd.Questions)
		if err != nil {
			return Exam{}, err
		}
		e.Questions = *upd.Questions
		e.TotalMarks = total
	}
	if upd.PassingPercent != nil && *upd.PassingPercent > 0 {
		e.PassingPercent = *upd.PassingPercent
	}
	e.PassingMarks = round2(float64(e.TotalMarks) * e.PassingPercent / 100)
	e.UpdatedAt = s.now().Unix()
	if err := s.store.PutExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *Service) GetExam(ctx context.Context, id string) (Exam, error) {
	return s.store.GetExam(ctx, id)
}

func (s *Service) ListCourseExams(ctx context.Context, courseID string) ([]Exam, error) {
	return s.store.ListCourseExams(ctx, courseID)
}

func (s *Service) ListInstructorExams(ctx context.Context, instructorID string) ([]Exam, error) {
	return s.store.ListInstructorExams(ctx, instructorID)
}

func (s *Service) DeleteExam(ctx context.Context, id string) error {
	return s.store.DeleteExam(ctx, id)
}

type SubmitResult struct {
	SubmissionID  string  `json:"submission_id"`
	MarksObtained float64 `json:"marks_obtained"`
	TotalMarks    int     `json:"total_marks"`
	Passed        bool    `json:"passed"`
}

// Submit grades an answer sheet against the exam definition and
// persists exactly one submission per (exam, student).
func (s *Service) Submit(ctx context.Context, examID, studentID string, answers map[string]string) (SubmitResult, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return SubmitResult{}, err
	}

	// Pre-check keeps the uniqueness constraint from being the sole
	// line of defense; the insert below still tolerates losing the race.
	if _, err := s.store.GetSubmissionForStudent(ctx, examID, studentID); err == nil {
		return SubmitResult{}, ErrDuplicateSubmission
	} else if !errors.Is(err, ErrSubmissionNotFound) {
		return SubmitResult{}, err
	}

	graded, obtained := grading.Mark(toGradingQuestions(e.Questions), answers)
	passed := obtained >= e.PassingMarks

	sub := Submission{
		ID:            uuid.NewString(),
		ExamID:        examID,
		StudentID:     studentID,
		CourseID:      e.CourseID,
		ExamTitle:     e.Title,
		Answers:       graded,
		TotalMarks:    e.TotalMarks,
		MarksObtained: obtained,
		PassingMarks:  e.PassingMarks,
		Passed:        passed,
		Graded:        true, // objective-only exams grade synchronously
		SubmittedAt:   s.now().Unix(),
	}
	if err := s.store.InsertSubmission(ctx, sub); err != nil {
		return SubmitResult{}, err
	}

	s.record(ctx, audit.TypeSubmissionGraded, sub.ID, map[string]any{
		"exam_id": examID, "student_id": studentID,
		"marks_obtained": obtained, "total_marks": e.TotalMarks, "passed": passed,
	})

	return SubmitResult{
		SubmissionID:  sub.ID,
		MarksObtained: obtained,
		TotalMarks:    e.TotalMarks,
		Passed:        passed,
	}, nil
}

type RegradeEntry struct {
	QuestionIndex int     `json:"question_index"`
	MarksObtained float64 `json:"marks_obtained"`
}

type RegradeResult struct {
	MarksObtained float64 `json:"marks_obtained"`
	Passed        bool    `json:"passed"`
}

// GradeSubjective overwrites the marks for the named question indices
// only, recomputes the grand total from every stored answer, and
// recomputes the pass flag against the submission's own threshold.
func (s *Service) GradeSubjective(ctx context.Context, submissionID string, entries []RegradeEntry) (RegradeResult, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return RegradeResult{}, err
	}

	for _, entry := range entries {
		for i := range sub.Answers {
			if sub.Answers[i].QuestionIndex == entry.QuestionIndex {
				sub.Answers[i].MarksObtained = entry.MarksObtained
				sub.Answers[i].IsCorrect = entry.MarksObtained >= float64(sub.Answers[i].MaxMarks)
				break
			}
		}
	}

	sub.MarksObtained = grading.Total(sub.Answers)
	sub.Passed = sub.MarksObtained >= sub.PassingMarks
	sub.Graded = true
	sub.GradedAt = s.now().Unix()

	if err := s.store.UpdateSubmissionGrades(ctx, sub); err != nil {
		return RegradeResult{}, err
	}

	s.record(ctx, audit.TypeSubjectiveRegraded, sub.ID, map[string]any{
		"marks_obtained": sub.MarksObtained, "passed": sub.Passed,
	})

	return RegradeResult{MarksObtained: sub.MarksObtained, Passed: sub.Passed}, nil
}

func (s *Service) GetSubmission(ctx context.Context, id string) (Submission, error) {
	return s.store.GetSubmission(ctx, id)
}

func (s *Service) GetSubmissionForStudent(ctx context.Context, examID, studentID string) (Submission, error) {
	return s.store.GetSubmissionForStudent(ctx, examID, studentID)
}

func (s *Service) ListStudentSubmissions(ctx context.Context, studentID, courseID string) ([]Submission, error) {
	return s.store.ListSubmissions(ctx, SubmissionFilter{StudentID: studentID, CourseID: courseID})
}

func (s *Service) ListExamSubmissions(ctx context.Context, examID string) ([]SubmissionOverview, error) {
	return s.store.ListExamSubmissions(ctx, examID)
}

func (s *Service) record(ctx context.Context, typ, key string, payload any) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Record(ctx, typ, key, payload); err != nil {
		log.Printf("audit: %s %s: %v", typ, key, err)
	}
}

func validateQuestions(questions []Question) (total int, err error) {
	if len(questions) < 1 {
		return 0, fmt.Errorf("%w: exam must have at least 1 question", ErrInvalidExam)
	}
	if len(questions) > 50 {
		return 0, fmt.Errorf("%w: exam cannot have more than 50 questions", ErrInvalidExam)
	}
	for i, q := range questions {
		if q.Text == "" {
			return 0, fmt.Errorf("%w: question %d: text is required", ErrInvalidExam, i+1)
		}
		if len(q.Options) < 2 {
			return 0, fmt.Errorf("%w: question %d: at least 2 options are required", ErrInvalidExam, i+1)
		}
		if q.CorrectOption == "" {
			return 0, fmt.Errorf("%w: question %d: correct answer must be specified", ErrInvalidExam, i+1)
		}
		if q.Marks < 1 || q.Marks > 100 {
			return 0, fmt.Errorf("%w: question %d: marks must be between 1 and 100", ErrInvalidExam, i+1)
		}
		total += q.Marks
	}
	return total, nil
}

func toGradingQuestions(questions []Question) []grading.Question {
	out := make([]grading.Question, len(questions))
	for i, q := range questions {
		out[i] = grading.Question{Text: q.Text, CorrectOption: q.CorrectOption, Marks: q.Marks}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
