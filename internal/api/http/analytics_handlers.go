package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlearn/openlearn-lms/internal/analytics"
	"github.com/openlearn/openlearn-lms/internal/rbac"
)

// MyStatsHandler serves the caller's own dashboard, picked by role.
func MyStatsHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := rbac.SubjectFromContext(ctx)
		switch rbac.RoleFromContext(ctx) {
		case "instructor":
			stats, err := agg.Instructor(ctx, sub)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		default:
			stats, err := agg.Student(ctx, sub)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		}
	}
}

func CourseStatsHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := agg.Course(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func PlatformStatsHandler(agg *analytics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := agg.Platform(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
