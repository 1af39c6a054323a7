package cert

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const certCols = `id,certificate_number,submission_id,student_id,course_id,student_name,student_email,course_title,marks_obtained,total_marks,percentage,file_path,admin_id,admin_approved,email_sent,email_sent_at,status,revoked_by,revocation_reason,revoked_at,issued_at`

func (s *SQLStore) Insert(ctx context.Context, c Certificate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO certificates (`+certCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		c.ID, c.CertificateNumber, c.SubmissionID, c.StudentID, c.CourseID,
		c.StudentName, c.StudentEmail, c.CourseTitle,
		c.MarksObtained, c.TotalMarks, c.Percentage, c.FilePath,
		c.AdminID, c.AdminApproved, c.EmailSent, nullableUnix(c.EmailSentAt),
		c.Status, c.RevokedBy, c.RevocationReason, nullableUnix(c.RevokedAt), c.IssuedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyIssued
	}
	return err
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+certCols+` FROM certificates WHERE id=$1`, id)
	return scanCertificate(row)
}

func (s *SQLStore) GetByNumber(ctx context.Context, number string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+certCols+` FROM certificates WHERE certificate_number=$1 ORDER BY issued_at DESC LIMIT 1`, number)
	return scanCertificate(row)
}

func (s *SQLStore) ListByStudent(ctx context.Context, studentID string) ([]Certificate, error) {
	return s.list(ctx, `SELECT `+certCols+` FROM certificates WHERE student_id=$1 ORDER BY issued_at DESC`, studentID)
}

func (s *SQLStore) ListByCourse(ctx context.Context, courseID string) ([]Certificate, error) {
	return s.list(ctx, `SELECT `+certCols+` FROM certificates WHERE course_id=$1 ORDER BY issued_at DESC`, courseID)
}

func (s *SQLStore) list(ctx context.Context, query string, arg any) ([]Certificate, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) ExistsForSubmission(ctx context.Context, submissionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM certificates WHERE submission_id=$1`, submissionID).Scan(&n)
	return n > 0, err
}

func (s *SQLStore) SetFilePath(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE certificates SET file_path=$1 WHERE id=$2`, path, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

func (s *SQLStore) MarkEmailSent(ctx context.Context, id string, at int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE certificates SET email_sent=$1, email_sent_at=$2 WHERE id=$3`, true, at, id)
	return err
}

func (s *SQLStore) Revoke(ctx context.Context, id, adminID, reason string, at int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE certificates
		SET status=$1, revoked_by=$2, revocation_reason=$3, revoked_at=$4
		WHERE id=$5`,
		StatusRevoked, adminID, reason, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCertificateNotFound
	}
	return nil
}

func (s *SQLStore) ListPendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		  sub.id, sub.student_id,
		  COALESCE(u.name,'Unknown'), COALESCE(u.email,'Unknown'),
		  sub.course_id, COALESCE(co.title,'Unknown'),
		  sub.marks_obtained, sub.total_marks, sub.submitted_at
		FROM exam_submissions sub
		LEFT JOIN users u ON u.id = sub.student_id
		LEFT JOIN courses co ON co.id = sub.course_id
		LEFT JOIN certificates c ON c.submission_id = sub.id
		WHERE sub.passed=$1 AND sub.graded=$2 AND c.id IS NULL
		ORDER BY sub.submitted_at DESC`, true, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PendingApproval
	for rows.Next() {
		var p PendingApproval
		if err := rows.Scan(&p.SubmissionID, &p.StudentID, &p.StudentName, &p.StudentEmail,
			&p.CourseID, &p.CourseTitle, &p.MarksObtained, &p.TotalMarks, &p.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanCertificate(row rowScanner) (Certificate, error) {
	var c Certificate
	var emailSentAt, revokedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.CertificateNumber, &c.SubmissionID, &c.StudentID, &c.CourseID,
		&c.StudentName, &c.StudentEmail, &c.CourseTitle,
		&c.MarksObtained, &c.TotalMarks, &c.Percentage, &c.FilePath,
		&c.AdminID, &c.AdminApproved, &c.EmailSent, &emailSentAt,
		&c.Status, &c.RevokedBy, &c.RevocationReason, &revokedAt, &c.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Certificate{}, ErrCertificateNotFound
		}
		return Certificate{}, err
	}
	c.EmailSentAt = emailSentAt.Int64
	c.RevokedAt = revokedAt.Int64
	return c, nil
}

func nullableUnix(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
