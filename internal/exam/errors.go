package exam

import "errors"

var (
	ErrExamNotFound        = errors.New("exam not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrDuplicateSubmission = errors.New("exam already submitted")
	ErrExamLocked          = errors.New("exam has submissions, questions are locked")
	ErrInvalidExam         = errors.New("invalid exam definition")
)
