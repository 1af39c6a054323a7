package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openlearn/openlearn-lms/internal/cert"
	"github.com/openlearn/openlearn-lms/internal/exam"
	"github.com/openlearn/openlearn-lms/internal/roster"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain sentinels to HTTP statuses. Anything unmapped
// is a 500 with a generic body so storage details never leak.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exam.ErrExamNotFound),
		errors.Is(err, exam.ErrSubmissionNotFound),
		errors.Is(err, cert.ErrCertificateNotFound),
		errors.Is(err, roster.ErrUserNotFound),
		errors.Is(err, roster.ErrCourseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, exam.ErrDuplicateSubmission),
		errors.Is(err, cert.ErrAlreadyIssued):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, exam.ErrExamLocked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, exam.ErrInvalidExam):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, cert.ErrNotPassed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, cert.ErrDataIntegrity):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
