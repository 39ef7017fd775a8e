package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/stowage/internal/domain"
)

// DefaultCredentialExpiry is how long a per-file credential stays valid.
const DefaultCredentialExpiry = 7200 * time.Second

type UploadTaskOptions struct {
	Base           string
	KeyPrefix      string
	Expiry         time.Duration
	AllowOverwrite bool
	GzipExtensions []string
}

// UploadTask uploads a single file under a credential scoped to its key.
type UploadTask struct {
	store      domain.ObjectStore
	compressor Compressor
	base       string
	keyPrefix  string
	expiry     time.Duration
	overwrite  bool
	gzip       map[string]bool
}

// NewUploadTask builds the per-file upload. compressor may be nil, in
// which case nothing is pre-compressed.
func NewUploadTask(store domain.ObjectStore, compressor Compressor, opts UploadTaskOptions) *UploadTask {
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = DefaultCredentialExpiry
	}

	gzip := make(map[string]bool, len(opts.GzipExtensions))
	for _, ext := range opts.GzipExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		gzip[ext] = true
	}

	// Found files are absolute; a relative base would never contain them.
	base := opts.Base
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}

	return &UploadTask{
		store:      store,
		compressor: compressor,
		base:       base,
		keyPrefix:  opts.KeyPrefix,
		expiry:     expiry,
		overwrite:  opts.AllowOverwrite,
		gzip:       gzip,
	}
}

// Key is the destination of file: the key prefix followed by the file's
// slash separated path relative to the base directory. Files outside the
// base keep their whole path.
func (t *UploadTask) Key(file string) string {
	rel, err := filepath.Rel(t.base, file)
	if err != nil || !filepath.IsLocal(rel) {
		return t.keyPrefix + strings.TrimPrefix(filepath.ToSlash(file), "/")
	}
	return t.keyPrefix + filepath.ToSlash(rel)
}

func (t *UploadTask) Run(ctx context.Context, file string) (string, error) {
	key := t.Key(file)

	if err := ctx.Err(); err != nil {
		return key, domain.TransportError(err)
	}

	body, encoding := file, ""
	if t.compressor != nil && t.gzip[strings.ToLower(filepath.Ext(file))] {
		compressed, err := t.compressor.CompressTemp(file)
		if err != nil {
			return key, domain.TransportError(err)
		}
		defer os.Remove(compressed)
		body, encoding = compressed, t.compressor.Encoding()
	}

	cred, err := t.store.IssueCredential(ctx, domain.CredentialRequest{
		Key:             key,
		Expiry:          t.expiry,
		AllowOverwrite:  t.overwrite,
		ContentType:     domain.ContentType(file),
		ContentEncoding: encoding,
	})
	if err != nil {
		return key, domain.TransportError(err)
	}

	resp, err := t.store.Upload(ctx, cred, key, body)
	if err != nil {
		return key, domain.TransportError(err)
	}
	if !resp.OK() {
		return key, domain.ProtocolError(resp.StatusCode, resp.Error)
	}

	return key, nil
}
