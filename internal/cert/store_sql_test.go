package cert

import (
	"context"
	"errors"
	"testing"

	"github.com/openlearn/openlearn-lms/internal/db"
)

// Issue's ExistsForSubmission pre-check normally wins; this covers the
// UNIQUE(submission_id) backstop when two issuances race past it.
func TestInsertUniqueSubmissionBackstop(t *testing.T) {
	conn, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	store := NewSQLStore(conn)

	c := Certificate{
		ID:                "ct-1",
		CertificateNumber: "CERT-20240315-abc123",
		SubmissionID:      "sub-1",
		StudentID:         "stu-1",
		CourseID:          "c-1",
		StudentName:       "Ada Lovelace",
		StudentEmail:      "ada@example.com",
		CourseTitle:       "Analytical Engines",
		MarksObtained:     8,
		TotalMarks:        10,
		Percentage:        80,
		AdminID:           "adm-1",
		Status:            StatusActive,
		IssuedAt:          1,
	}
	if err := store.Insert(context.Background(), c); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	c.ID = "ct-2" // fresh row id, same submission
	if err := store.Insert(context.Background(), c); !errors.Is(err, ErrAlreadyIssued) {
		t.Errorf("second insert: got %v, want ErrAlreadyIssued", err)
	}

	// A different submission inserts cleanly.
	c.ID = "ct-3"
	c.SubmissionID = "sub-2"
	if err := store.Insert(context.Background(), c); err != nil {
		t.Errorf("other submission: %v", err)
	}

	got, err := store.GetByID(context.Background(), "ct-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CertificateNumber != c.CertificateNumber || got.StudentEmail != "ada@example.com" {
		t.Errorf("round trip = %+v", got)
	}
}
