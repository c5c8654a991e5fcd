package pipeline

import (
	"errors"
	"fmt"

	"github.com/Anilcodes01/proto-book/internal/domain"
)

// Stage names the states a job moves through.
type Stage string

const (
	StageReceived         Stage = "received"
	StageValidated        Stage = "validated"
	StageRecordCreated    Stage = "record_created"
	StageOriginalStored   Stage = "original_stored"
	StageContentExtracted Stage = "content_extracted"
	StageRendered         Stage = "rendered"
	StagePDFStored        Stage = "pdf_stored"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// Error is returned by Process when a job ends in the failed state. Stage is
// the state the job was trying to reach; BookID is empty when no record was
// created.
type Error struct {
	Stage  Stage
	BookID string
	Err    error
}

func (e *Error) Error() string {
	if e.BookID == "" {
		return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage book=%s: %v", e.Stage, e.BookID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a rejected submission.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}

// UserMessage is the message shown to the submitter for a failed job.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) && perr.Err != nil {
		err = perr.Err
	}
	return "Processing failed: " + err.Error()
}

// withKind tags err with kind unless it already carries it.
func withKind(kind, err error, action string) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", kind, action, err)
}
