package exam_test

import (
	"context"
	"errors"
	"testing"

	"github.com/openlearn/openlearn-lms/internal/exam"
	"github.com/openlearn/openlearn-lms/internal/grading"
)

/* ---------------- In-memory fake satisfying exam.Store ---------------- */

type fakeStore struct {
	exams       map[string]exam.Exam
	submissions map[string]exam.Submission // by id
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		exams:       map[string]exam.Exam{},
		submissions: map[string]exam.Submission{},
	}
}

func (f *fakeStore) PutExam(_ context.Context, e exam.Exam) error {
	f.exams[e.ID] = e
	return nil
}

func (f *fakeStore) GetExam(_ context.Context, id string) (exam.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return exam.Exam{}, exam.ErrExamNotFound
	}
	return e, nil
}

func (f *fakeStore) ListCourseExams(_ context.Context, courseID string) ([]exam.Exam, error) {
	var out []exam.Exam
	for _, e := range f.exams {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListInstructorExams(_ context.Context, instructorID string) ([]exam.Exam, error) {
	var out []exam.Exam
	for _, e := range f.exams {
		if e.InstructorID == instructorID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteExam(_ context.Context, id string) error {
	if _, ok := f.exams[id]; !ok {
		return exam.ErrExamNotFound
	}
	delete(f.exams, id)
	return nil
}

func (f *fakeStore) HasSubmissions(_ context.Context, examID string) (bool, error) {
	for _, s := range f.submissions {
		if s.ExamID == examID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertSubmission(_ context.Context, s exam.Submission) error {
	for _, existing := range f.submissions {
		if existing.ExamID == s.ExamID && existing.StudentID == s.StudentID {
			return exam.ErrDuplicateSubmission
		}
	}
	f.submissions[s.ID] = s
	return nil
}

func (f *fakeStore) GetSubmission(_ context.Context, id string) (exam.Submission, error) {
	s, ok := f.submissions[id]
	if !ok {
		return exam.Submission{}, exam.ErrSubmissionNotFound
	}
	return s, nil
}

func (f *fakeStore) GetSubmissionForStudent(_ context.Context, examID, studentID string) (exam.Submission, error) {
	for _, s := range f.submissions {
		if s.ExamID == examID && s.StudentID == studentID {
			return s, nil
		}
	}
	return exam.Submission{}, exam.ErrSubmissionNotFound
}

func (f *fakeStore) ListSubmissions(_ context.Context, filter exam.SubmissionFilter) ([]exam.Submission, error) {
	var out []exam.Submission
	for _, s := range f.submissions {
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && s.CourseID != filter.CourseID {
			continue
		}
		if filter.ExamID != "" && s.ExamID != filter.ExamID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) ListExamSubmissions(_ context.Context, examID string) ([]exam.SubmissionOverview, error) {
	var out []exam.SubmissionOverview
	for _, s := range f.submissions {
		if s.ExamID == examID {
			out = append(out, exam.SubmissionOverview{Submission: s})
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateSubmissionGrades(_ context.Context, s exam.Submission) error {
	if _, ok := f.submissions[s.ID]; !ok {
		return exam.ErrSubmissionNotFound
	}
	f.submissions[s.ID] = s
	return nil
}

func (f *fakeStore) SetCertificateGenerated(_ context.Context, submissionID string) error {
	s, ok := f.submissions[submissionID]
	if !ok {
		return exam.ErrSubmissionNotFound
	}
	s.CertificateGenerated = true
	f.submissions[submissionID] = s
	return nil
}

/* ---------------- helpers ---------------- */

func newServiceWithExam(t *testing.T) (*exam.Service, *fakeStore, exam.Exam) {
	t.Helper()
	store := newFakeStore()
	svc := exam.NewService(store, nil, 70)
	e, err := svc.CreateExam(context.Background(), exam.CreateExamInput{
		CourseID:     "course-1",
		InstructorID: "instr-1",
		Title:        "Go Fundamentals Final",
		Questions: []exam.Question{
			{Text: "Q0", Options: []string{"a", "b", "c"}, CorrectOption: "1", Marks: 3},
			{Text: "Q1", Options: []string{"a", "b", "c"}, CorrectOption: "2", Marks: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return svc, store, e
}

/* ---------------- tests ---------------- */

func TestCreateExam_ComputesThresholds(t *testing.T) {
	_, _, e := newServiceWithExam(t)
	if e.TotalMarks != 5 {
		t.Fatalf("TotalMarks = %d, want 5", e.TotalMarks)
	}
	// 70% of 5
	if e.PassingMarks != 3.5 {
		t.Fatalf("PassingMarks = %v, want 3.5", e.PassingMarks)
	}
	if e.Status != exam.StatusActive {
		t.Fatalf("Status = %q, want active", e.Status)
	}
}

func TestCreateExam_Validation(t *testing.T) {
	store := newFakeStore()
	svc := exam.NewService(store, nil, 70)
	cases := []struct {
		name      string
		questions []exam.Question
	}{
		{"no questions", nil},
		{"missing text", []exam.Question{{Options: []string{"a", "b"}, CorrectOption: "0", Marks: 1}}},
		{"one option", []exam.Question{{Text: "q", Options: []string{"a"}, CorrectOption: "0", Marks: 1}}},
		{"no correct answer", []exam.Question{{Text: "q", Options: []string{"a", "b"}, Marks: 1}}},
		{"zero marks", []exam.Question{{Text: "q", Options: []string{"a", "b"}, CorrectOption: "0", Marks: 0}}},
		{"marks above 100", []exam.Question{{Text: "q", Options: []string{"a", "b"}, CorrectOption: "0", Marks: 101}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateExam(context.Background(), exam.CreateExamInput{
				CourseID: "c", InstructorID: "i", Title: "t", Questions: tc.questions,
			})
			if !errors.Is(err, exam.ErrInvalidExam) {
				t.Fatalf("err = %v, want ErrInvalidExam", err)
			}
		})
	}
}

func TestSubmit_ExamNotFound(t *testing.T) {
	svc := exam.NewService(newFakeStore(), nil, 70)
	_, err := svc.Submit(context.Background(), "nope", "stud-1", nil)
	if !errors.Is(err, exam.ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestSubmit_PartialScoreFailsBelowThreshold(t *testing.T) {
	svc, store, e := newServiceWithExam(t)
	// Q0 correct, Q1 wrong: 3 < 3.5.
	res, err := svc.Submit(context.Background(), e.ID, "stud-1", map[string]string{"0": "1", "1": "0"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.MarksObtained != 3 || res.TotalMarks != 5 {
		t.Fatalf("got %v/%v, want 3/5", res.MarksObtained, res.TotalMarks)
	}
	if res.Passed {
		t.Fatal("passed = true, want false (3 < 3.5)")
	}

	sub, err := store.GetSubmission(context.Background(), res.SubmissionID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if !sub.Graded {
		t.Error("objective submission should be graded immediately")
	}
	if sub.CertificateGenerated {
		t.Error("certificate_generated should default to false")
	}
	if got := grading.Total(sub.Answers); got != sub.MarksObtained {
		t.Errorf("marks_obtained %v != sum of answer marks %v", sub.MarksObtained, got)
	}
}

func TestSubmit_FullScorePasses(t *testing.T) {
	svc, _, e := newServiceWithExam(t)
	res, err := svc.Submit(context.Background(), e.ID, "stud-1", map[string]string{"0": "1", "1": "2"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.MarksObtained != 5 || !res.Passed {
		t.Fatalf("got %v passed=%v, want 5 passed=true", res.MarksObtained, res.Passed)
	}
}

func TestSubmit_DuplicateRejected(t *testing.T) {
	svc, _, e := newServiceWithExam(t)
	if _, err := svc.Submit(context.Background(), e.ID, "stud-1", map[string]string{"0": "1"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := svc.Submit(context.Background(), e.ID, "stud-1", map[string]string{"0": "1"})
	if !errors.Is(err, exam.ErrDuplicateSubmission) {
		t.Fatalf("second Submit err = %v, want ErrDuplicateSubmission", err)
	}
}

func TestSubmit_DifferentStudentsAllowed(t *testing.T) {
	svc, _, e := newServiceWithExam(t)
	if _, err := svc.Submit(context.Background(), e.ID, "stud-1", nil); err != nil {
		t.Fatalf("stud-1: %v", err)
	}
	if _, err := svc.Submit(context.Background(), e.ID, "stud-2", nil); err != nil {
		t.Fatalf("stud-2: %v", err)
	}
}

func TestGradeSubjective_RecomputesTotalAndPassed(t *testing.T) {
	svc, _, e := newServiceWithExam(t)
	// Q0 correct (3), Q1 unanswered (0): failed at 3/5.
	res, err := svc.Submit(context.Background(), e.ID, "stud-1", map[string]string{"0": "1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Passed {
		t.Fatal("precondition: submission should have failed")
	}

	// Instructor awards Q1 its 2 marks: 3 unchanged + 2 new = 5.
	regrade, err := svc.GradeSubjective(context.Background(), res.SubmissionID,
		[]exam.RegradeEntry{{QuestionIndex: 1, MarksObtained: 2}})
	if err != nil {
		t.Fatalf("GradeSubjective: %v", err)
	}
	if regrade.MarksObtained != 5 {
		t.Fatalf("MarksObtained = %v, want 5 (3 unchanged + 2 new)", regrade.MarksObtained)
	}
	if !regrade.Passed {
		t.Fatal("passed should be recomputed to true")
	}

	sub, err := svc.GetSubmission(context.Background(), res.SubmissionID)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.GradedAt == 0 {
		t.Error("graded_at should be stamped")
	}
	if got := grading.Total(sub.Answers); got != sub.MarksObtained {
		t.Errorf("marks_obtained %v != sum of answer marks %v", sub.MarksObtained, got)
	}
}

func TestGradeSubjective_NotFound(t *testing.T) {
	svc, _, _ := newServiceWithExam(t)
	_, err := svc.GradeSubjective(context.Background(), "missing", nil)
	if !errors.Is(err, exam.ErrSubmissionNotFound) {
		t.Fatalf("err = %v, want ErrSubmissionNotFound", err)
	}
}

func TestUpdateExam_QuestionsLockedAfterSubmission(t *testing.T) {
	svc, _, e := newServiceWithExam(t)
	if _, err := svc.Submit(context.Background(), e.ID, "stud-1", nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	newQs := []exam.Question{{Text: "q", Options: []string{"a", "b"}, CorrectOption: "0", Marks: 10}}
	_, err := svc.UpdateExam(context.Background(), e.ID, exam.ExamUpdate{Questions: &newQs})
	if !errors.Is(err, exam.ErrExamLocked) {
		t.Fatalf("err = %v, want ErrExamLocked", err)
	}

	// Metadata updates stay allowed.
	title := "Renamed Final"
	updated, err := svc.UpdateExam(context.Background(), e.ID, exam.ExamUpdate{Title: &title})
	if err != nil {
		t.Fatalf("metadata update: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("Title = %q, want %q", updated.Title, title)
	}
}

func TestSanitized_StripsAnswerKeys(t *testing.T) {
	_, _, e := newServiceWithExam(t)
	safe := e.Sanitized()
	for i, q := range safe.Questions {
		if q.CorrectOption != "" || q.Explanation != "" {
			t.Errorf("question %d leaked answer key: %+v", i, q)
		}
	}
	// original untouched
	if e.Questions[0].CorrectOption == "" {
		t.Error("Sanitized must not mutate the source exam")
	}
}
