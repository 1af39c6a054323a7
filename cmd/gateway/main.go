package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openlearn/openlearn-lms/internal/analytics"
	api "github.com/openlearn/openlearn-lms/internal/api/http"
	"github.com/openlearn/openlearn-lms/internal/audit"
	"github.com/openlearn/openlearn-lms/internal/auth"
	"github.com/openlearn/openlearn-lms/internal/cert"
	"github.com/openlearn/openlearn-lms/internal/config"
	"github.com/openlearn/openlearn-lms/internal/db"
	"github.com/openlearn/openlearn-lms/internal/exam"
	"github.com/openlearn/openlearn-lms/internal/notify"
	"github.com/openlearn/openlearn-lms/internal/pdf"
	"github.com/openlearn/openlearn-lms/internal/rbac"
	"github.com/openlearn/openlearn-lms/internal/roster"
	"github.com/openlearn/openlearn-lms/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	auditLog := audit.NewLog(dbh)
	rosterStore := roster.NewSQLStore(dbh)
	examStore := exam.NewSQLStore(dbh)
	certStore := cert.NewSQLStore(dbh)

	examSvc := exam.NewService(examStore, auditLog, cfg.PassingScorePercent)
	agg := analytics.NewAggregator(dbh)

	blobs, err := storage.NewFSStore(cfg.StorageRoot)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	renderer := pdf.NewRenderer(cfg.TemplatePath)

	var mailer cert.Mailer
	if cfg.EmailEnabled {
		if m := notify.NewSMTPMailer(cfg.SMTPHost+":"+cfg.SMTPPort,
			cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword); m != nil {
			mailer = m
		}
	}
	issuer := cert.NewIssuer(certStore, examStore, rosterStore, renderer, blobs, mailer, auditLog)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, rosterStore))

	// Public verification: anyone with a certificate number can check
	// authenticity, but only the trimmed view is served.
	r.Get("/verify/{certificateID}", api.VerifyCertificateHandler(issuer))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Courses & enrollment
		pr.With(rbac.Require("exam:create")).
			Post("/courses", api.PutCourseHandler(rosterStore))
		pr.Get("/courses/{courseID}", api.GetCourseHandler(rosterStore))
		pr.Post("/courses/{courseID}/enroll", api.EnrollHandler(rosterStore))

		// Exams
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(examSvc))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(examSvc))
		pr.With(rbac.Require("exam:view")).
			Get("/courses/{courseID}/exams", api.ListCourseExamsHandler(examSvc))
		pr.With(rbac.Require("exam:create")).
			Get("/exams", api.ListMyExamsHandler(examSvc))
		pr.With(rbac.Require("exam:update")).
			Patch("/exams/{examID}", api.UpdateExamHandler(examSvc))
		pr.With(rbac.Require("exam:delete-own")).
			Delete("/exams/{examID}", api.DeleteExamHandler(examSvc))

		// Submissions & grading
		pr.With(rbac.Require("exam:submit")).
			Post("/exams/{examID}/submit", api.SubmitExamHandler(examSvc))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(examSvc))
		pr.With(rbac.Require("submission:view-own")).
			Get("/submissions", api.ListMySubmissionsHandler(examSvc))
		pr.With(rbac.Require("submission:view-all")).
			Get("/exams/{examID}/submissions", api.ListExamSubmissionsHandler(examSvc))
		pr.With(rbac.Require("submission:grade")).
			Post("/submissions/{submissionID}/grade", api.GradeSubjectiveHandler(examSvc))

		// Certificates
		pr.With(rbac.Require("cert:issue")).
			Post("/certificates", api.IssueCertificateHandler(issuer))
		pr.With(rbac.Require("cert:revoke")).
			Post("/certificates/{certificateID}/revoke", api.RevokeCertificateHandler(issuer))
		pr.With(rbac.RequireAny("cert:view-own", "cert:view-all")).
			Get("/certificates/{certificateID}", api.GetCertificateHandler(issuer))
		pr.With(rbac.RequireAny("cert:view-own", "cert:view-all")).
			Get("/certificates/{certificateID}/pdf", api.DownloadCertificateHandler(issuer, blobs))
		pr.With(rbac.Require("cert:view-own")).
			Get("/certificates", api.ListMyCertificatesHandler(issuer))
		pr.With(rbac.Require("cert:view-all")).
			Get("/courses/{courseID}/certificates", api.ListCourseCertificatesHandler(issuer))
		pr.With(rbac.Require("cert:issue")).
			Get("/certificates/pending", api.PendingApprovalsHandler(issuer))

		// Analytics
		pr.With(rbac.Require("analytics:self")).
			Get("/analytics/me", api.MyStatsHandler(agg))
		pr.With(rbac.Require("analytics:course")).
			Get("/analytics/courses/{courseID}", api.CourseStatsHandler(agg))
		pr.With(rbac.Require("analytics:platform")).
			Get("/analytics/platform", api.PlatformStatsHandler(agg))

		// Audit trail (admin)
		pr.With(rbac.Require("audit:view")).
			Get("/audit", api.RecentAuditHandler(auditLog))

		// Users (admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(rosterStore))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(rosterStore))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
