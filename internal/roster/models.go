package roster

import "errors"

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrCourseNotFound = errors.New("course not found")
)

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

type Course struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	InstructorID string  `json:"instructor_id"`
	Price        float64 `json:"price"`
	CreatedAt    int64   `json:"created_at,omitempty"`
}

type Enrollment struct {
	ID        string  `json:"id"`
	StudentID string  `json:"student_id"`
	CourseID  string  `json:"course_id"`
	Progress  float64 `json:"progress"`
	Completed bool    `json:"completed"`
	CreatedAt int64   `json:"created_at,omitempty"`
}
