package usecase

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/semmidev/stowage/internal/domain"
)

type logLine struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) add(level, template string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: fmt.Sprintf(template, args...)})
}

func (l *recordingLogger) Debugf(template string, args ...interface{}) { l.add("debug", template, args) }
func (l *recordingLogger) Infof(template string, args ...interface{})  { l.add("info", template, args) }
func (l *recordingLogger) Warnf(template string, args ...interface{})  { l.add("warn", template, args) }
func (l *recordingLogger) Errorf(template string, args ...interface{}) { l.add("error", template, args) }

func (l *recordingLogger) has(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.level == level && strings.Contains(line.msg, substr) {
			return true
		}
	}
	return false
}

type recordingProgress struct {
	mu        sync.Mutex
	total     int
	updates   int
	violation bool
	done      *domain.RunStats
}

func (p *recordingProgress) Start(total int) {
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
}

func (p *recordingProgress) Update(stats domain.RunStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates++
	if stats.Uploading < 0 || stats.Uploading+stats.Success+stats.Fail > stats.Total {
		p.violation = true
	}
}

func (p *recordingProgress) Done(stats domain.RunStats) {
	p.mu.Lock()
	p.done = &stats
	p.mu.Unlock()
}

// fakeStore is an in-memory ObjectStore. Listing serves either scripted
// pages or keys paged by index.
type fakeStore struct {
	mu sync.Mutex

	credErr   error
	responses map[string]domain.UploadResponse
	uploadErr map[string]error
	creds     []domain.CredentialRequest
	uploads   map[string]string
	bodies    map[string][]byte

	pages      []domain.ListPage
	keys       []string
	listErr    error
	listCalls  int
	cursors    []string
	pageSizes  []int

	batches    [][]string
	batchErrAt map[int]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		responses: map[string]domain.UploadResponse{},
		uploadErr: map[string]error{},
		uploads:   map[string]string{},
		bodies:    map[string][]byte{},
	}
}

func (s *fakeStore) IssueCredential(ctx context.Context, req domain.CredentialRequest) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credErr != nil {
		return domain.Credential{}, s.credErr
	}
	s.creds = append(s.creds, req)
	return domain.Credential{Scope: domain.Scope("fake", req.Key), Method: "PUT"}, nil
}

func (s *fakeStore) Upload(ctx context.Context, cred domain.Credential, key string, localPath string) (domain.UploadResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.UploadResponse{}, err
	}

	body, err := os.ReadFile(localPath)
	if err != nil {
		return domain.UploadResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cred.Scope != domain.Scope("fake", key) {
		return domain.UploadResponse{StatusCode: 403, Error: "scope mismatch"}, nil
	}
	if err := s.uploadErr[key]; err != nil {
		return domain.UploadResponse{}, err
	}
	if resp, ok := s.responses[key]; ok {
		return resp, nil
	}
	s.uploads[key] = localPath
	s.bodies[key] = body
	return domain.UploadResponse{StatusCode: 200}, nil
}

func (s *fakeStore) ListByPrefix(ctx context.Context, prefix string, pageSize int, cursor string) (domain.ListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listCalls++
	s.cursors = append(s.cursors, cursor)
	s.pageSizes = append(s.pageSizes, pageSize)
	if s.listErr != nil && s.listCalls > 1 {
		return domain.ListPage{}, s.listErr
	}

	if s.pages != nil {
		return s.pages[s.listCalls-1], nil
	}

	var matching []string
	for _, k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			matching = append(matching, k)
		}
	}
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := min(start+pageSize, len(matching))
	page := domain.ListPage{Keys: append([]string(nil), matching[start:end]...)}
	if end < len(matching) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (s *fakeStore) BatchDelete(ctx context.Context, keys []string) ([]domain.DeleteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, append([]string(nil), keys...))
	if err := s.batchErrAt[len(s.batches)]; err != nil {
		return nil, err
	}

	out := make([]domain.DeleteOutcome, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.DeleteOutcome{Key: k, Code: 200})
	}
	return out, nil
}

func (s *fakeStore) PutFile(ctx context.Context, key string, localPath string) error {
	body, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = localPath
	s.bodies[key] = body
	return nil
}

type staticFinder struct {
	files []string
	err   error
}

func (f staticFinder) Find() ([]string, error) {
	return f.files, f.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	summary *domain.RunSummary
	err     error
}

func (n *fakeNotifier) NotifyRun(ctx context.Context, summary domain.RunSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summary = &summary
	return n.err
}
