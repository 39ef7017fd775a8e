package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semmidev/stowage/internal/domain"
)

type Upload struct {
	finder    Finder
	scheduler *Scheduler
	logger    Logger
	output    string

	publisher domain.ReportPublisher
	reportKey string

	notifier Notifier
	name     string
	bucket   string
}

type UploadOption func(*Upload)

// WithReportPublisher copies the written report to key after each run.
func WithReportPublisher(publisher domain.ReportPublisher, key string) UploadOption {
	return func(uc *Upload) {
		uc.publisher = publisher
		uc.reportKey = key
	}
}

// WithNotifier sends a run summary naming the app and bucket after each run.
func WithNotifier(notifier Notifier, name, bucket string) UploadOption {
	return func(uc *Upload) {
		uc.notifier = notifier
		uc.name = name
		uc.bucket = bucket
	}
}

func NewUpload(finder Finder, scheduler *Scheduler, logger Logger, output string, opts ...UploadOption) *Upload {
	uc := &Upload{
		finder:    finder,
		scheduler: scheduler,
		logger:    logger,
		output:    output,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute enumerates the files, uploads them and writes the report once
// all workers are done. Per-file failures only show up in the report.
func (uc *Upload) Execute(ctx context.Context) (domain.RunStats, error) {
	start := time.Now()

	files, err := uc.finder.Find()
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("enumerate files: %w", err)
	}
	uc.logger.Infof("Found %d files to upload", len(files))

	report, stats, err := uc.scheduler.Run(ctx, files)
	if err != nil {
		return stats, err
	}

	if err := writeJSON(uc.output, report); err != nil {
		return stats, fmt.Errorf("write upload report: %w", err)
	}

	duration := time.Since(start)
	uc.logger.Infof("Upload completed in %s, %s", duration.Round(time.Millisecond), stats)
	uc.logger.Infof("Report written to %s", uc.output)
	if stats.Fail > 0 {
		uc.logger.Warnf("%d of %d files failed, see %s", stats.Fail, stats.Total, uc.output)
	}

	uc.afterRun(ctx, domain.RunSummary{
		Name:     uc.name,
		Bucket:   uc.bucket,
		Stats:    stats,
		Report:   report,
		Duration: duration,
	})

	return stats, nil
}

// afterRun publishes the report and notifies concurrently. Neither step
// can fail the run.
func (uc *Upload) afterRun(ctx context.Context, summary domain.RunSummary) {
	var g errgroup.Group

	if uc.publisher != nil && uc.reportKey != "" {
		g.Go(func() error {
			if err := uc.publisher.PutFile(ctx, uc.reportKey, uc.output); err != nil {
				uc.logger.Warnf("Failed to publish report to %s: %v", uc.reportKey, err)
				return err
			}
			uc.logger.Infof("Report published to %s", uc.reportKey)
			return nil
		})
	}

	if uc.notifier != nil {
		g.Go(func() error {
			if err := uc.notifier.NotifyRun(ctx, summary); err != nil {
				uc.logger.Warnf("Failed to send notification: %v", err)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		uc.logger.Debugf("post-run steps finished with errors: %v", err)
	}
}
