package storage

import (
	"context"
	"fmt"
	"io"
)

// UploadResult contains the result of a file upload
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	CDNURL      string `json:"cdn_url,omitempty"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ObjectStore is the object-storage collaborator interface.
// The message store adapter depends on this, never on a concrete client,
// so tests can substitute an in-memory fake.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*UploadResult, error)
	Delete(ctx context.Context, keys ...string) error
	ResolveURL(key string) string
}

// AttachmentKey builds the storage key for a message attachment.
// Keys are scoped projects/<projectID>/messages/<messageID>/<filename> so a
// project wipe can remove everything under one prefix.
func AttachmentKey(projectID, messageID, filename string) string {
	return fmt.Sprintf("projects/%s/messages/%s/%s", projectID, messageID, filename)
}
