package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openlearn/openlearn-lms/internal/rbac"
	"github.com/openlearn/openlearn-lms/internal/roster"
)

type courseDTO struct {
	ID    string  `json:"id"`
	Title string  `json:"title" validate:"required,min=3,max=200"`
	Price float64 `json:"price" validate:"gte=0"`
}

func PutCourseHandler(store *roster.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dto courseDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(dto); err != nil {
			if _, ok := err.(validator.ValidationErrors); ok {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "validate", http.StatusInternalServerError)
			return
		}
		c := roster.Course{
			ID:           dto.ID,
			Title:        dto.Title,
			InstructorID: rbac.SubjectFromContext(r.Context()),
			Price:        dto.Price,
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := store.PutCourse(r.Context(), c); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func GetCourseHandler(store *roster.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func EnrollHandler(store *roster.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if _, err := store.GetCourse(r.Context(), courseID); err != nil {
			writeErr(w, err)
			return
		}
		e, err := store.Enroll(r.Context(), rbac.SubjectFromContext(r.Context()), courseID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}
