// Package analytics computes dashboard roll-ups over the relational
// stores. Pure read-side: nothing here creates state or enforces new
// invariants, and every ratio degrades to 0 when its denominator is 0.
package analytics

import (
	"context"
	"database/sql"
	"math"
)

type Aggregator struct {
	db *sql.DB
}

func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db}
}

type StudentStats struct {
	StudentID           string  `json:"student_id"`
	Enrollments         int     `json:"enrollments"`
	CompletedCourses    int     `json:"completed_courses"`
	AverageProgress     float64 `json:"average_progress"`
	ExamsTaken          int     `json:"exams_taken"`
	ExamsPassed         int     `json:"exams_passed"`
	PassRate            float64 `json:"pass_rate"`
	AveragePercentage   float64 `json:"average_percentage"`
	ActiveCertificates  int     `json:"active_certificates"`
	AttendanceDays      int     `json:"attendance_days"`
	LiveClassesAttended int     `json:"live_classes_attended"`
	TotalSpent          float64 `json:"total_spent"`
}

type InstructorStats struct {
	InstructorID        string  `json:"instructor_id"`
	Courses             int     `json:"courses"`
	TotalEnrollments    int     `json:"total_enrollments"`
	ExamsAuthored       int     `json:"exams_authored"`
	SubmissionsReceived int     `json:"submissions_received"`
	PassRate            float64 `json:"pass_rate"`
	CertificatesIssued  int     `json:"certificates_issued"`
	Revenue             float64 `json:"revenue"`
}

type CourseStats struct {
	CourseID       string  `json:"course_id"`
	Enrollments    int     `json:"enrollments"`
	Completions    int     `json:"completions"`
	CompletionRate float64 `json:"completion_rate"`
	Exams          int     `json:"exams"`
	Submissions    int     `json:"submissions"`
	AverageScore   float64 `json:"average_score"` // mean percentage over graded submissions
	Certificates   int     `json:"certificates"`
}

type PlatformStats struct {
	Students            int     `json:"students"`
	Instructors         int     `json:"instructors"`
	Admins              int     `json:"admins"`
	Courses             int     `json:"courses"`
	Enrollments         int     `json:"enrollments"`
	PaymentsTotal       float64 `json:"payments_total"`
	Exams               int     `json:"exams"`
	Submissions         int     `json:"submissions"`
	ActiveCertificates  int     `json:"active_certificates"`
	RevokedCertificates int     `json:"revoked_certificates"`
}

func (a *Aggregator) Student(ctx context.Context, studentID string) (StudentStats, error) {
	s := StudentStats{StudentID: studentID}

	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(progress), 0)
		FROM enrollments WHERE student_id = $1`, studentID).
		Scan(&s.Enrollments, &s.CompletedCourses, &s.AverageProgress)
	if err != nil {
		return s, err
	}

	var avgPct sql.NullFloat64
	err = a.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN passed THEN 1 ELSE 0 END), 0),
		       AVG(CASE WHEN total_marks > 0 THEN marks_obtained * 100.0 / total_marks END)
		FROM exam_submissions WHERE student_id = $1`, studentID).
		Scan(&s.ExamsTaken, &s.ExamsPassed, &avgPct)
	if err != nil {
		return s, err
	}
	if s.ExamsTaken > 0 {
		s.PassRate = round2(float64(s.ExamsPassed) / float64(s.ExamsTaken) * 100)
	}
	if avgPct.Valid {
		s.AveragePercentage = round2(avgPct.Float64)
	}

	err = a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM certificates
		WHERE student_id = $1 AND status = 'active'`, studentID).
		Scan(&s.ActiveCertificates)
	if err != nil {
		return s, err
	}

	err = a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'daily_login' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN kind = 'live_class' THEN 1 ELSE 0 END), 0)
		FROM attendance WHERE user_id = $1`, studentID).
		Scan(&s.AttendanceDays, &s.LiveClassesAttended)
	if err != nil {
		return s, err
	}

	err = a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE student_id = $1 AND status = 'completed'`, studentID).
		Scan(&s.TotalSpent)
	return s, err
}

func (a *Aggregator) Instructor(ctx context.Context, instructorID string) (InstructorStats, error) {
	s := InstructorStats{InstructorID: instructorID}

	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM courses WHERE instructor_id = $1`, instructorID).
		Scan(&s.Courses)
	if err != nil {
		return s, err
	}

	err = a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE c.instructor_id = $1`, instructorID).
		Scan(&s.TotalEnrollments)
	if err != nil {
		return s, err
	}

	var passed int
	err = a.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT ex.id),
		       COUNT(sub.id),
		       COALESCE(SUM(CASE WHEN sub.passed THEN 1 ELSE 0 END), 0)
		FROM exams ex
		LEFT JOIN exam_submissions sub ON sub.exam_id = ex.id
		WHERE ex.instructor_id = $1`, instructorID).
		Scan(&s.ExamsAuthored, &s.SubmissionsReceived, &passed)
	if err != nil {
		return s, err
	}
	if s.SubmissionsReceived > 0 {
		s.PassRate = round2(float64(passed) / float64(s.SubmissionsReceived) * 100)
	}

	err = a.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM certificates ct
		JOIN courses c ON c.id = ct.course_id
		WHERE c.instructor_id = $1`, instructorID).
		Scan(&s.CertificatesIssued)
	if err != nil {
		return s, err
	}

	err = a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount), 0) FROM payments p
		JOIN courses c ON c.id = p.course_id
		WHERE c.instructor_id = $1 AND p.status = 'completed'`, instructorID).
		Scan(&s.Revenue)
	return s, err
}

func (a *Aggregator) Course(ctx context.Context, courseID string) (CourseStats, error) {
	s := CourseStats{CourseID: courseID}

	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0)
		FROM enrollments WHERE course_id = $1`, courseID).
		Scan(&s.Enrollments, &s.Completions)
	if err != nil {
		return s, err
	}
	if s.Enrollments > 0 {
		s.CompletionRate = round2(float64(s.Completions) / float64(s.Enrollments) * 100)
	}

	err = a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exams WHERE course_id = $1`, courseID).
		Scan(&s.Exams)
	if err != nil {
		return s, err
	}

	var avg sql.NullFloat64
	err = a.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       AVG(CASE WHEN graded AND total_marks > 0 THEN marks_obtained * 100.0 / total_marks END)
		FROM exam_submissions WHERE course_id = $1`, courseID).
		Scan(&s.Submissions, &avg)
	if err != nil {
		return s, err
	}
	if avg.Valid {
		s.AverageScore = round2(avg.Float64)
	}

	err = a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM certificates WHERE course_id = $1`, courseID).
		Scan(&s.Certificates)
	return s, err
}

func (a *Aggregator) Platform(ctx context.Context) (PlatformStats, error) {
	var s PlatformStats

	err := a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN role = 'student' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN role = 'instructor' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0)
		FROM users`).
		Scan(&s.Students, &s.Instructors, &s.Admins)
	if err != nil {
		return s, err
	}

	err = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&s.Courses)
	if err != nil {
		return s, err
	}
	err = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments`).Scan(&s.Enrollments)
	if err != nil {
		return s, err
	}
	err = a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'completed'`).
		Scan(&s.PaymentsTotal)
	if err != nil {
		return s, err
	}
	err = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&s.Exams)
	if err != nil {
		return s, err
	}
	err = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exam_submissions`).Scan(&s.Submissions)
	if err != nil {
		return s, err
	}
	err = a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'revoked' THEN 1 ELSE 0 END), 0)
		FROM certificates`).
		Scan(&s.ActiveCertificates, &s.RevokedCertificates)
	return s, err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
