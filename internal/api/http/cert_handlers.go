package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlearn/openlearn-lms/internal/cert"
	"github.com/openlearn/openlearn-lms/internal/rbac"
	"github.com/openlearn/openlearn-lms/internal/storage"
)

func IssueCertificateHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SubmissionID string `json:"submission_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.SubmissionID == "" {
			http.Error(w, "submission_id required", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		adminID := ""
		if rbac.RoleFromContext(ctx) == "admin" {
			adminID = rbac.SubjectFromContext(ctx)
		}
		res, err := issuer.Issue(ctx, req.SubmissionID, adminID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func RevokeCertificateHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		err := issuer.Revoke(ctx, chi.URLParam(r, "certificateID"),
			rbac.SubjectFromContext(ctx), req.Reason)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	}
}

// GetCertificateHandler resolves by id first, then by public
// certificate number, so verification links work with either. The full
// snapshot is served to the owner or to cert:view-all holders only.
func GetCertificateHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := issuer.Get(r.Context(), chi.URLParam(r, "certificateID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canReadCertificate(r, c) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func canReadCertificate(r *http.Request, c cert.Certificate) bool {
	ctx := r.Context()
	return c.StudentID == rbac.SubjectFromContext(ctx) ||
		rbac.NewChecker(nil).Has(rbac.RoleFromContext(ctx), "cert:view-all")
}

// publicCertificate is the verification view: enough to confirm a
// certificate is genuine without exposing contact details.
type publicCertificate struct {
	CertificateNumber string  `json:"certificate_number"`
	StudentName       string  `json:"student_name"`
	CourseTitle       string  `json:"course_title"`
	Percentage        float64 `json:"percentage"`
	Status            string  `json:"status"`
	IssuedAt          int64   `json:"issued_at"`
	RevokedAt         int64   `json:"revoked_at,omitempty"`
}

// VerifyCertificateHandler is the unauthenticated verification
// endpoint; it never serves the full snapshot.
func VerifyCertificateHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := issuer.Get(r.Context(), chi.URLParam(r, "certificateID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, publicCertificate{
			CertificateNumber: c.CertificateNumber,
			StudentName:       c.StudentName,
			CourseTitle:       c.CourseTitle,
			Percentage:        c.Percentage,
			Status:            c.Status,
			IssuedAt:          c.IssuedAt,
			RevokedAt:         c.RevokedAt,
		})
	}
}

func ListMyCertificatesHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := issuer.ListByStudent(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func ListCourseCertificatesHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := issuer.ListByCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func PendingApprovalsHandler(issuer *cert.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := issuer.PendingApprovals(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// DownloadCertificateHandler streams the rendered PDF, regenerating it
// first if the artifact went missing.
func DownloadCertificateHandler(issuer *cert.Issuer, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "certificateID")
		c, err := issuer.Get(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canReadCertificate(r, c) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		key, err := issuer.RenderOnDemand(r.Context(), c.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		rc, err := blobs.Get(key)
		if err != nil {
			http.Error(w, "artifact unavailable", http.StatusInternalServerError)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="certificate.pdf"`)
		_, _ = io.Copy(w, rc)
	}
}
