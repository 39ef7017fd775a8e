package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/stowage/internal/domain"
)

func TestUpload(t *testing.T) {
	Convey("Given an Upload use case over a build directory", t, func() {
		tempDir, err := os.MkdirTemp("", "upload_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		base := filepath.Join(tempDir, "dist")
		So(os.MkdirAll(base, 0755), ShouldBeNil)

		var files []string
		for i := 0; i < 5; i++ {
			path := filepath.Join(base, fmt.Sprintf("page-%d.html", i))
			So(os.WriteFile(path, []byte(fmt.Sprintf("page %d", i)), 0644), ShouldBeNil)
			files = append(files, path)
		}

		output := filepath.Join(tempDir, "stowage-upload.json")
		store := newFakeStore()
		logger := &recordingLogger{}
		ctx := context.Background()

		newUpload := func(finder Finder, parallel int, opts ...UploadOption) *Upload {
			task := NewUploadTask(store, nil, UploadTaskOptions{Base: base, KeyPrefix: "www/"})
			scheduler := NewScheduler(task, parallel, &recordingProgress{}, logger)
			return NewUpload(finder, scheduler, logger, output, opts...)
		}

		readReport := func() domain.Report {
			data, err := os.ReadFile(output)
			So(err, ShouldBeNil)
			var report domain.Report
			So(json.Unmarshal(data, &report), ShouldBeNil)
			return report
		}

		Convey("When all five files upload with two workers", func() {
			stats, err := newUpload(staticFinder{files: files}, 2).Execute(ctx)

			Convey("It should write a report with five successes", func() {
				So(err, ShouldBeNil)
				So(stats, ShouldResemble, domain.RunStats{Total: 5, Success: 5})

				report := readReport()
				So(report.Success, ShouldHaveLength, 5)
				So(report.Fail, ShouldHaveLength, 0)
				So(report.Success, ShouldContain, domain.SuccessRecord{File: files[3], Key: "www/page-3.html"})
				So(store.bodies["www/page-3.html"], ShouldResemble, []byte("page 3"))
			})

			Convey("The report should use the documented field names", func() {
				data, _ := os.ReadFile(output)
				var raw map[string][]map[string]any
				So(json.Unmarshal(data, &raw), ShouldBeNil)
				So(raw["success"][0], ShouldContainKey, "file")
				So(raw["success"][0], ShouldContainKey, "key")
				So(raw["fail"], ShouldNotBeNil)
			})
		})

		Convey("When one of three files is rejected", func() {
			store.responses["www/page-1.html"] = domain.UploadResponse{StatusCode: 403, Error: "quota exceeded"}
			stats, err := newUpload(staticFinder{files: files[:3]}, 2).Execute(ctx)

			Convey("It should report the failure and the two successes", func() {
				So(err, ShouldBeNil)
				So(stats, ShouldResemble, domain.RunStats{Total: 3, Success: 2, Fail: 1})

				report := readReport()
				So(report.Success, ShouldHaveLength, 2)
				So(report.Fail, ShouldResemble, []domain.FailureRecord{
					{File: files[1], Key: "www/page-1.html", Msg: "quota exceeded", Kind: domain.FailureProtocol},
				})
				So(logger.has("warn", "1 of 3 files failed"), ShouldBeTrue)
			})
		})

		Convey("When enumeration fails", func() {
			_, err := newUpload(staticFinder{err: errors.New("permission denied")}, 2).Execute(ctx)

			Convey("It should abort before uploading or writing anything", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "enumerate files")
				So(store.creds, ShouldBeEmpty)
				_, statErr := os.Stat(output)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the worker count is zero", func() {
			_, err := newUpload(staticFinder{files: files}, 0).Execute(ctx)

			Convey("It should fail with a configuration error and no report", func() {
				So(errors.Is(err, domain.ErrInvalidParallelism), ShouldBeTrue)
				So(store.creds, ShouldBeEmpty)
				_, statErr := os.Stat(output)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When a publisher and notifier are configured", func() {
			publisher := newFakeStore()
			notifier := &fakeNotifier{}
			_, err := newUpload(staticFinder{files: files[:2]}, 1,
				WithReportPublisher(publisher, "reports/latest.json"),
				WithNotifier(notifier, "stowage", "my-bucket"),
			).Execute(ctx)

			Convey("It should publish the report and send a summary", func() {
				So(err, ShouldBeNil)
				So(publisher.uploads, ShouldContainKey, "reports/latest.json")

				written, _ := os.ReadFile(output)
				So(publisher.bodies["reports/latest.json"], ShouldResemble, written)

				So(notifier.summary, ShouldNotBeNil)
				So(notifier.summary.Name, ShouldEqual, "stowage")
				So(notifier.summary.Bucket, ShouldEqual, "my-bucket")
				So(notifier.summary.Stats.Success, ShouldEqual, 2)
			})
		})

		Convey("When the notifier fails", func() {
			notifier := &fakeNotifier{err: errors.New("bot blocked")}
			stats, err := newUpload(staticFinder{files: files[:1]}, 1, WithNotifier(notifier, "n", "b")).Execute(ctx)

			Convey("The run should still succeed", func() {
				So(err, ShouldBeNil)
				So(stats.Success, ShouldEqual, 1)
				So(logger.has("warn", "bot blocked"), ShouldBeTrue)
			})
		})

		Convey("When the report cannot be written", func() {
			blocker := filepath.Join(tempDir, "blocker")
			So(os.WriteFile(blocker, nil, 0644), ShouldBeNil)
			task := NewUploadTask(store, nil, UploadTaskOptions{Base: base})
			uc := NewUpload(staticFinder{files: files[:1]}, NewScheduler(task, 1, &recordingProgress{}, logger), logger,
				filepath.Join(blocker, "report.json"))

			_, err := uc.Execute(ctx)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "write upload report")
		})
	})
}
