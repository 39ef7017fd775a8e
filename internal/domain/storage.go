package domain

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"time"
)

// ObjectStore is the remote bucket the use cases talk to. Implementations are
// bound to a single bucket for their whole lifetime.
type ObjectStore interface {
	IssueCredential(ctx context.Context, req CredentialRequest) (Credential, error)
	Upload(ctx context.Context, cred Credential, key string, localPath string) (UploadResponse, error)
	ListByPrefix(ctx context.Context, prefix string, pageSize int, cursor string) (ListPage, error)
	BatchDelete(ctx context.Context, keys []string) ([]DeleteOutcome, error)
}

type ReportPublisher interface {
	PutFile(ctx context.Context, key string, localPath string) error
}

type CredentialRequest struct {
	Key             string
	Expiry          time.Duration
	AllowOverwrite  bool
	ContentType     string
	ContentEncoding string
}

// Credential authorizes exactly one write to Scope until ExpiresAt.
// Method, URL and Header are backend specific and must be replayed as is.
type Credential struct {
	Scope     string
	Method    string
	URL       string
	Header    http.Header
	ExpiresAt time.Time
}

type UploadResponse struct {
	StatusCode int
	Error      string
}

func (r UploadResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type ListPage struct {
	Keys       []string
	NextCursor string
}

type DeleteOutcome struct {
	Key       string `json:"key"`
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

func Scope(bucket, key string) string {
	return bucket + ":" + key
}

// ContentType guesses the MIME type of a file from its extension.
func ContentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
