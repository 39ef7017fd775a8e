package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/semmidev/stowage/internal/domain"
)

var _ Store = (*LocalStorage)(nil)

// LocalBucket is the bucket name local credentials are scoped to.
const LocalBucket = "local"

// LocalStorage is a bucket backed by a directory. Keys map to slash
// separated paths below basePath.
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

func (l *LocalStorage) path(key string) (string, bool) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.Join(l.basePath, rel), true
}

func (l *LocalStorage) IssueCredential(ctx context.Context, req domain.CredentialRequest) (domain.Credential, error) {
	if _, ok := l.path(req.Key); !ok {
		return domain.Credential{}, fmt.Errorf("invalid key %q", req.Key)
	}

	header := http.Header{}
	if req.ContentType != "" {
		header.Set("Content-Type", req.ContentType)
	}
	if req.ContentEncoding != "" {
		header.Set("Content-Encoding", req.ContentEncoding)
	}
	if !req.AllowOverwrite {
		header.Set("If-None-Match", "*")
	}

	return domain.Credential{
		Scope:     domain.Scope(LocalBucket, req.Key),
		Method:    http.MethodPut,
		URL:       "file://" + filepath.ToSlash(filepath.Join(l.basePath, filepath.FromSlash(req.Key))),
		Header:    header,
		ExpiresAt: l.now().Add(req.Expiry),
	}, nil
}

// Upload copies localPath to key. Credential problems are answered the way
// the remote service answers them, with a status and message.
func (l *LocalStorage) Upload(ctx context.Context, cred domain.Credential, key string, localPath string) (domain.UploadResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.UploadResponse{}, err
	}

	destPath, ok := l.path(key)
	if !ok {
		return domain.UploadResponse{StatusCode: http.StatusBadRequest, Error: "invalid key"}, nil
	}
	if cred.Scope != domain.Scope(LocalBucket, key) {
		return domain.UploadResponse{StatusCode: http.StatusForbidden, Error: "credential scope mismatch"}, nil
	}
	if !l.now().Before(cred.ExpiresAt) {
		return domain.UploadResponse{StatusCode: http.StatusForbidden, Error: "expired token"}, nil
	}

	source, err := os.Open(localPath)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return domain.UploadResponse{}, fmt.Errorf("failed to create dest dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if cred.Header.Get("If-None-Match") == "*" {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	dest, err := os.OpenFile(destPath, flags, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.UploadResponse{StatusCode: http.StatusPreconditionFailed, Error: "file exists"}, nil
		}
		return domain.UploadResponse{}, fmt.Errorf("failed to create dest: %w", err)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		os.Remove(destPath)
		return domain.UploadResponse{}, fmt.Errorf("failed to copy: %w", err)
	}
	if err := dest.Close(); err != nil {
		return domain.UploadResponse{}, fmt.Errorf("failed to close dest: %w", err)
	}

	return domain.UploadResponse{StatusCode: http.StatusOK}, nil
}

// ListByPrefix pages through keys in lexicographic order. The cursor is the
// last key of the previous page. Each page walks only the directory holding
// the prefix, so a full listing costs one walk of that subtree per page.
func (l *LocalStorage) ListByPrefix(ctx context.Context, prefix string, pageSize int, cursor string) (domain.ListPage, error) {
	if pageSize < 1 {
		return domain.ListPage{}, fmt.Errorf("page size must be at least 1")
	}

	root := l.basePath
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		if dir, ok := l.path(prefix[:i]); ok {
			root = dir
		}
	}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return domain.ListPage{Keys: []string{}}, nil
	}

	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && key > cursor {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return domain.ListPage{}, fmt.Errorf("failed to read directory: %w", err)
	}

	sort.Strings(keys)

	page := domain.ListPage{Keys: keys}
	if len(keys) > pageSize {
		page.Keys = keys[:pageSize]
		page.NextCursor = page.Keys[pageSize-1]
	}

	return page, nil
}

func (l *LocalStorage) BatchDelete(ctx context.Context, keys []string) ([]domain.DeleteOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]domain.DeleteOutcome, 0, len(keys))
	for _, key := range keys {
		outcomes = append(outcomes, l.deleteOne(key))
	}

	return outcomes, nil
}

func (l *LocalStorage) deleteOne(key string) domain.DeleteOutcome {
	filePath, ok := l.path(key)
	if !ok {
		return domain.DeleteOutcome{Key: key, Code: http.StatusBadRequest, ErrorCode: "InvalidArgument", Error: "invalid key"}
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.DeleteOutcome{Key: key, Code: http.StatusNotFound, ErrorCode: "NoSuchKey", Error: "no such key"}
		}
		return domain.DeleteOutcome{Key: key, Code: http.StatusInternalServerError, ErrorCode: "InternalError", Error: err.Error()}
	}

	return domain.DeleteOutcome{Key: key, Code: http.StatusOK}
}

// PutFile writes localPath to key, replacing any existing object.
func (l *LocalStorage) PutFile(ctx context.Context, key string, localPath string) error {
	cred, err := l.IssueCredential(ctx, domain.CredentialRequest{Key: key, Expiry: time.Minute, AllowOverwrite: true})
	if err != nil {
		return err
	}

	resp, err := l.Upload(ctx, cred, key, localPath)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("failed to put %s: %s", key, resp.Error)
	}

	return nil
}
