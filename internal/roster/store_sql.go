package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SQLStore resolves users, courses and enrollments. The grading and
// issuance paths only read from it; writes exist for admin bootstrap
// and enrollment bookkeeping.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) GetUser(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,email,role,password_hash,created_at FROM users WHERE id=$1`, id)
	return scanUser(row)
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,email,role,password_hash,created_at FROM users WHERE email=$1`, email)
	return scanUser(row)
}

func (s *SQLStore) ListUsers(ctx context.Context, role string) ([]User, error) {
	var rows *sql.Rows
	var err error
	if role == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id,name,email,role,password_hash,created_at FROM users ORDER BY name`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id,name,email,role,password_hash,created_at FROM users WHERE role=$1 ORDER BY name`, role)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type UpsertUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"` // plaintext, hashed here
}

// BulkUpsertUsers inserts or updates by email, hashing any supplied
// password. Returns (inserted, updated).
func (s *SQLStore) BulkUpsertUsers(ctx context.Context, rows []UpsertUser) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	inserted, updated := 0, 0
	for _, r := range rows {
		if r.Role == "" {
			r.Role = RoleStudent
		}
		hash := ""
		if r.Password != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
			if err != nil {
				return 0, 0, err
			}
			hash = string(h)
		}

		var existingID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email=$1`, r.Email).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			id := r.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (id,name,email,role,password_hash,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
				id, r.Name, r.Email, r.Role, hash, time.Now().Unix()); err != nil {
				return 0, 0, err
			}
			inserted++
		case err != nil:
			return 0, 0, err
		default:
			if hash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET name=$1, role=$2, password_hash=$3 WHERE id=$4`,
					r.Name, r.Role, hash, existingID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET name=$1, role=$2 WHERE id=$3`, r.Name, r.Role, existingID)
			}
			if err != nil {
				return 0, 0, err
			}
			updated++
		}
	}
	return inserted, updated, tx.Commit()
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id,title,instructor_id,price,created_at FROM courses WHERE id=$1`, id).
		Scan(&c.ID, &c.Title, &c.InstructorID, &c.Price, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrCourseNotFound
	}
	return c, err
}

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id,title,instructor_id,price,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, price=EXCLUDED.price`,
		c.ID, c.Title, c.InstructorID, c.Price, c.CreatedAt)
	return err
}

func (s *SQLStore) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM enrollments WHERE student_id=$1 AND course_id=$2`,
		studentID, courseID).Scan(&n)
	return n > 0, err
}

func (s *SQLStore) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	e := Enrollment{
		ID:        uuid.NewString(),
		StudentID: studentID,
		CourseID:  courseID,
		CreatedAt: time.Now().Unix(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (id,student_id,course_id,progress,completed,created_at)
		 VALUES ($1,$2,$3,0,$4,$5)
		 ON CONFLICT (student_id, course_id) DO NOTHING`,
		e.ID, studentID, courseID, false, e.CreatedAt)
	return e, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}
