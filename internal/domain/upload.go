package domain

import (
	"fmt"
	"sync"
	"time"
)

type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureProtocol  FailureKind = "protocol"
)

// UploadError is the outcome of a failed upload. Transport failures never
// reached the service; protocol failures carry the service status.
type UploadError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	if e.Kind == FailureProtocol {
		return fmt.Sprintf("%s failure (status=%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failure: %s", e.Kind, e.Message)
}

func TransportError(err error) *UploadError {
	return &UploadError{Kind: FailureTransport, Message: err.Error()}
}

func ProtocolError(statusCode int, message string) *UploadError {
	if message == "" {
		message = fmt.Sprintf("status=%d", statusCode)
	}
	return &UploadError{Kind: FailureProtocol, StatusCode: statusCode, Message: message}
}

type SuccessRecord struct {
	File string `json:"file"`
	Key  string `json:"key"`
}

type FailureRecord struct {
	File string      `json:"file"`
	Key  string      `json:"key"`
	Msg  string      `json:"msg"`
	Kind FailureKind `json:"kind"`
}

// Report is the persisted form of a run's ledger.
type Report struct {
	Success []SuccessRecord `json:"success"`
	Fail    []FailureRecord `json:"fail"`
}

type RunStats struct {
	Total     int `json:"total"`
	Uploading int `json:"uploading"`
	Success   int `json:"success"`
	Fail      int `json:"fail"`
}

func (s RunStats) String() string {
	return fmt.Sprintf("total files: %d, uploading: %d, success: %d, fail: %d",
		s.Total, s.Uploading, s.Success, s.Fail)
}

// Ledger accumulates upload outcomes. Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	success []SuccessRecord
	fail    []FailureRecord
}

func NewLedger() *Ledger {
	return &Ledger{
		success: make([]SuccessRecord, 0),
		fail:    make([]FailureRecord, 0),
	}
}

func (l *Ledger) AddSuccess(rec SuccessRecord) {
	l.mu.Lock()
	l.success = append(l.success, rec)
	l.mu.Unlock()
}

func (l *Ledger) AddFailure(rec FailureRecord) {
	l.mu.Lock()
	l.fail = append(l.fail, rec)
	l.mu.Unlock()
}

// Report returns a copy of the records collected so far.
func (l *Ledger) Report() Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := Report{
		Success: make([]SuccessRecord, len(l.success)),
		Fail:    make([]FailureRecord, len(l.fail)),
	}
	copy(r.Success, l.success)
	copy(r.Fail, l.fail)
	return r
}

// RunSummary describes a finished upload run for notifications.
type RunSummary struct {
	Name     string
	Bucket   string
	Stats    RunStats
	Report   Report
	Duration time.Duration
}
