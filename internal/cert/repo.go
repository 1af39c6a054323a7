package cert

import "context"

type Store interface {
	// Insert maps a storage-level uniqueness violation on submission_id
	// to ErrAlreadyIssued.
	Insert(ctx context.Context, c Certificate) error
	GetByID(ctx context.Context, id string) (Certificate, error)
	GetByNumber(ctx context.Context, number string) (Certificate, error)
	ListByStudent(ctx context.Context, studentID string) ([]Certificate, error)
	ListByCourse(ctx context.Context, courseID string) ([]Certificate, error)
	ExistsForSubmission(ctx context.Context, submissionID string) (bool, error)
	SetFilePath(ctx context.Context, id, path string) error
	MarkEmailSent(ctx context.Context, id string, at int64) error
	// Revoke overwrites any previous revocation metadata; revoking an
	// already-revoked certificate restamps reason and timestamp.
	Revoke(ctx context.Context, id, adminID, reason string, at int64) error
	ListPendingApprovals(ctx context.Context) ([]PendingApproval, error)
}
