package common

import (
	"errors"
	"fmt"
)

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Messaging errors
	ErrInvalidMessage    = errors.New("invalid message")
	ErrEmptyMessage      = errors.New("message has no content and no attachments")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrMessageNotFound   = errors.New("message not found")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("message store unavailable")

	// Project errors
	ErrProjectNotFound = errors.New("project not found")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// AttachmentFailure records one file that could not be attached
type AttachmentFailure struct {
	FileName string
	Err      error
}

func (f AttachmentFailure) Error() string {
	return fmt.Sprintf("attachment %q failed: %v", f.FileName, f.Err)
}

func (f AttachmentFailure) Unwrap() error {
	return f.Err
}

// PartialAttachmentError reports files that failed to attach while the
// message row itself persisted. It is a warning, not a hard failure:
// the message is not lost.
type PartialAttachmentError struct {
	MessageID string
	Failures  []AttachmentFailure
}

func (e *PartialAttachmentError) Error() string {
	return fmt.Sprintf("%d attachment(s) failed for message %s", len(e.Failures), e.MessageID)
}

// FailedFileNames lists the files that did not attach
func (e *PartialAttachmentError) FailedFileNames() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.FileName
	}
	return names
}
