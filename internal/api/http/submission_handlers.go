package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlearn/openlearn-lms/internal/exam"
	"github.com/openlearn/openlearn-lms/internal/rbac"
)

func SubmitExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res, err := svc.Submit(r.Context(),
			chi.URLParam(r, "examID"), rbac.SubjectFromContext(r.Context()), req.Answers)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// GetSubmissionHandler serves a submission to its owner or to any role
// holding submission:view-all.
func GetSubmissionHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		ctx := r.Context()
		if sub.StudentID != rbac.SubjectFromContext(ctx) &&
			!rbac.NewChecker(nil).Has(rbac.RoleFromContext(ctx), "submission:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

func ListMySubmissionsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := svc.ListStudentSubmissions(r.Context(),
			rbac.SubjectFromContext(r.Context()), r.URL.Query().Get("course_id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

func ListExamSubmissionsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := svc.ListExamSubmissions(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

func GradeSubjectiveHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Grades []exam.RegradeEntry `json:"grades"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if len(req.Grades) == 0 {
			http.Error(w, "grades required", http.StatusBadRequest)
			return
		}
		res, err := svc.GradeSubjective(r.Context(), chi.URLParam(r, "submissionID"), req.Grades)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
