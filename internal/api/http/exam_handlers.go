package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openlearn/openlearn-lms/internal/exam"
	"github.com/openlearn/openlearn-lms/internal/rbac"
)

var validate = validator.New()

type questionDTO struct {
	Text          string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectOption string   `json:"correct_answer" validate:"required"`
	Marks         int      `json:"marks" validate:"required,min=1,max=100"`
	Explanation   string   `json:"explanation"`
}

type createExamDTO struct {
	CourseID        string        `json:"course_id" validate:"required"`
	Title           string        `json:"title" validate:"required,min=3,max=200"`
	Description     string        `json:"description"`
	Questions       []questionDTO `json:"questions" validate:"required,min=1,max=50,dive"`
	PassingPercent  float64       `json:"passing_percent" validate:"omitempty,gt=0,lte=100"`
	DurationMinutes int           `json:"duration_minutes" validate:"omitempty,min=1"`
	ExamDate        int64         `json:"exam_date"`
	Deadline        int64         `json:"deadline"`
	Status          string        `json:"status" validate:"omitempty,oneof=draft active completed"`
}

func CreateExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dto createExamDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(dto); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		questions := make([]exam.Question, len(dto.Questions))
		for i, q := range dto.Questions {
			questions[i] = exam.Question{
				Text:          q.Text,
				Options:       q.Options,
				CorrectOption: q.CorrectOption,
				Marks:         q.Marks,
				Explanation:   q.Explanation,
			}
		}
		e, err := svc.CreateExam(r.Context(), exam.CreateExamInput{
			CourseID:        dto.CourseID,
			InstructorID:    rbac.SubjectFromContext(r.Context()),
			Title:           dto.Title,
			Description:     dto.Description,
			Questions:       questions,
			PassingPercent:  dto.PassingPercent,
			DurationMinutes: dto.DurationMinutes,
			ExamDate:        dto.ExamDate,
			Deadline:        dto.Deadline,
			Status:          dto.Status,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GetExamHandler strips answer keys and explanations for students;
// instructors and admins see the full definition.
func GetExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := svc.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" {
			e = e.Sanitized()
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func ListCourseExamsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exams, err := svc.ListCourseExams(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" {
			for i := range exams {
				exams[i] = exams[i].Sanitized()
			}
		}
		writeJSON(w, http.StatusOK, exams)
	}
}

func ListMyExamsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exams, err := svc.ListInstructorExams(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exams)
	}
}

type updateExamDTO struct {
	Title           *string        `json:"title"`
	Description     *string        `json:"description"`
	Questions       *[]questionDTO `json:"questions"`
	PassingPercent  *float64       `json:"passing_percent"`
	DurationMinutes *int           `json:"duration_minutes"`
	ExamDate        *int64         `json:"exam_date"`
	Deadline        *int64         `json:"deadline"`
	Status          *string        `json:"status" validate:"omitempty,oneof=draft active completed"`
}

func UpdateExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dto updateExamDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(dto); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		upd := exam.ExamUpdate{
			Title:           dto.Title,
			Description:     dto.Description,
			PassingPercent:  dto.PassingPercent,
			DurationMinutes: dto.DurationMinutes,
			ExamDate:        dto.ExamDate,
			Deadline:        dto.Deadline,
			Status:          dto.Status,
		}
		if dto.Questions != nil {
			qs := make([]exam.Question, len(*dto.Questions))
			for i, q := range *dto.Questions {
				qs[i] = exam.Question{
					Text:          q.Text,
					Options:       q.Options,
					CorrectOption: q.CorrectOption,
					Marks:         q.Marks,
					Explanation:   q.Explanation,
				}
			}
			upd.Questions = &qs
		}
		e, err := svc.UpdateExam(r.Context(), chi.URLParam(r, "examID"), upd)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func DeleteExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteExam(r.Context(), chi.URLParam(r, "examID")); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
