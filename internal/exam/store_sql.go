package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openlearn/openlearn-lms/internal/grading"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// isUniqueViolation matches postgres (23505) and sqlite constraint
// rejections so the insert race loses gracefully.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	qj, err := json.Marshal(e.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams
		(id,course_id,instructor_id,title,description,questions_json,total_marks,passing_marks,passing_percent,duration_minutes,exam_date,deadline,status,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, description=EXCLUDED.description,
		  questions_json=EXCLUDED.questions_json, total_marks=EXCLUDED.total_marks,
		  passing_marks=EXCLUDED.passing_marks, passing_percent=EXCLUDED.passing_percent,
		  duration_minutes=EXCLUDED.duration_minutes, exam_date=EXCLUDED.exam_date,
		  deadline=EXCLUDED.deadline, status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
		e.ID, e.CourseID, e.InstructorID, e.Title, e.Description, string(qj),
		e.TotalMarks, e.PassingMarks, e.PassingPercent, e.DurationMinutes,
		nullableUnix(e.ExamDate), nullableUnix(e.Deadline), e.Status,
		e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examCols+` FROM exams WHERE id=$1`, id)
	return scanExam(row)
}

func (s *SQLStore) ListCourseExams(ctx context.Context, courseID string) ([]Exam, error) {
	return s.listExams(ctx, `SELECT `+examCols+` FROM exams WHERE course_id=$1 ORDER BY created_at DESC`, courseID)
}

func (s *SQLStore) ListInstructorExams(ctx context.Context, instructorID string) ([]Exam, error) {
	return s.listExams(ctx, `SELECT `+examCols+` FROM exams WHERE instructor_id=$1 ORDER BY created_at DESC`, instructorID)
}

func (s *SQLStore) listExams(ctx context.Context, query string, arg any) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExamNotFound
	}
	return nil
}

func (s *SQLStore) HasSubmissions(ctx context.Context, examID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM exam_submissions WHERE exam_id=$1`, examID).Scan(&n)
	return n > 0, err
}

func (s *SQLStore) InsertSubmission(ctx context.Context, sub Submission) error {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exam_submissions
		(id,exam_id,student_id,course_id,exam_title,answers_json,total_marks,marks_obtained,passing_marks,passed,graded,certificate_generated,submitted_at,graded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		sub.ID, sub.ExamID, sub.StudentID, sub.CourseID, sub.ExamTitle, string(aj),
		sub.TotalMarks, sub.MarksObtained, sub.PassingMarks, sub.Passed, sub.Graded,
		sub.CertificateGenerated, sub.SubmittedAt, nullableUnix(sub.GradedAt))
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateSubmission
	}
	return err
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM exam_submissions WHERE id=$1`, id)
	return scanSubmission(row)
}

func (s *SQLStore) GetSubmissionForStudent(ctx context.Context, examID, studentID string) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM exam_submissions WHERE exam_id=$1 AND student_id=$2`,
		examID, studentID)
	return scanSubmission(row)
}

func (s *SQLStore) ListSubmissions(ctx context.Context, f SubmissionFilter) ([]Submission, error) {
	query := `SELECT ` + submissionCols + ` FROM exam_submissions WHERE 1=1`
	args := []any{}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		query += ` AND student_id=$` + strconv.Itoa(len(args))
	}
	if f.CourseID != "" {
		args = append(args, f.CourseID)
		query += ` AND course_id=$` + strconv.Itoa(len(args))
	}
	if f.ExamID != "" {
		args = append(args, f.ExamID)
		query += ` AND exam_id=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListExamSubmissions(ctx context.Context, examID string) ([]SubmissionOverview, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+prefixedSubmissionCols+`,
		  COALESCE(u.name,'Unknown'), COALESCE(u.email,'Unknown'), COALESCE(c.id,'')
		FROM exam_submissions sub
		LEFT JOIN users u ON u.id = sub.student_id
		LEFT JOIN certificates c ON c.submission_id = sub.id
		WHERE sub.exam_id=$1
		ORDER BY sub.submitted_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SubmissionOverview
	for rows.Next() {
		var o SubmissionOverview
		var aj string
		var gradedAt sql.NullInt64
		if err := rows.Scan(&o.ID, &o.ExamID, &o.StudentID, &o.CourseID, &o.ExamTitle, &aj,
			&o.TotalMarks, &o.MarksObtained, &o.PassingMarks, &o.Passed, &o.Graded,
			&o.CertificateGenerated, &o.SubmittedAt, &gradedAt,
			&o.StudentName, &o.StudentEmail, &o.CertificateID); err != nil {
			return nil, err
		}
		o.GradedAt = gradedAt.Int64
		if err := json.Unmarshal([]byte(aj), &o.Answers); err != nil {
			o.Answers = nil
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateSubmissionGrades(ctx context.Context, sub Submission) error {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE exam_submissions
		SET answers_json=$1, marks_obtained=$2, passed=$3, graded=$4, graded_at=$5
		WHERE id=$6`,
		string(aj), sub.MarksObtained, sub.Passed, sub.Graded, nullableUnix(sub.GradedAt), sub.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func (s *SQLStore) SetCertificateGenerated(ctx context.Context, submissionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_submissions SET certificate_generated=$1 WHERE id=$2`, true, submissionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// --- row scanning ---

const examCols = `id,course_id,instructor_id,title,description,questions_json,total_marks,passing_marks,passing_percent,duration_minutes,exam_date,deadline,status,created_at,updated_at`

const submissionCols = `id,exam_id,student_id,course_id,exam_title,answers_json,total_marks,marks_obtained,passing_marks,passed,graded,certificate_generated,submitted_at,graded_at`

var prefixedSubmissionCols = "sub." + strings.Join(strings.Split(submissionCols, ","), ",sub.")

type rowScanner interface{ Scan(dest ...any) error }

func scanExam(row rowScanner) (Exam, error) {
	var e Exam
	var qj string
	var examDate, deadline sql.NullInt64
	err := row.Scan(&e.ID, &e.CourseID, &e.InstructorID, &e.Title, &e.Description, &qj,
		&e.TotalMarks, &e.PassingMarks, &e.PassingPercent, &e.DurationMinutes,
		&examDate, &deadline, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrExamNotFound
		}
		return Exam{}, err
	}
	e.ExamDate = examDate.Int64
	e.Deadline = deadline.Int64
	if err := json.Unmarshal([]byte(qj), &e.Questions); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func scanSubmission(row rowScanner) (Submission, error) {
	var sub Submission
	var aj string
	var gradedAt sql.NullInt64
	err := row.Scan(&sub.ID, &sub.ExamID, &sub.StudentID, &sub.CourseID, &sub.ExamTitle, &aj,
		&sub.TotalMarks, &sub.MarksObtained, &sub.PassingMarks, &sub.Passed, &sub.Graded,
		&sub.CertificateGenerated, &sub.SubmittedAt, &gradedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, err
	}
	sub.GradedAt = gradedAt.Int64
	if err := json.Unmarshal([]byte(aj), &sub.Answers); err != nil {
		sub.Answers = []grading.GradedAnswer{}
	}
	return sub, nil
}

func nullableUnix(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
