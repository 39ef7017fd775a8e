package app

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/stowage/internal/config"
	"github.com/semmidev/stowage/internal/domain"
	"github.com/semmidev/stowage/internal/infrastructure/logger"
)

func TestApp(t *testing.T) {
	Convey("Given an App over a local bucket", t, func() {
		tempDir, err := os.MkdirTemp("", "app_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		for name, body := range map[string]string{
			"dist/index.html":      "<html></html>",
			"dist/static/app.js":   "console.log(1)",
			"dist/static/site.css": "body{}",
		} {
			path := filepath.Join(tempDir, filepath.FromSlash(name))
			So(os.MkdirAll(filepath.Dir(path), 0755), ShouldBeNil)
			So(os.WriteFile(path, []byte(body), 0644), ShouldBeNil)
		}

		cfg, err := config.Load("",
			config.WithOverride("storage.backend", config.BackendLocal),
			config.WithOverride("storage.local_path", "bucket"),
			config.WithOverride("upload.cwd", tempDir),
			config.WithOverride("upload.key_prefix", "site/"),
			config.WithOverride("upload.parallel_count", 3),
			config.WithOverride("upload.report_key", "reports/last-upload.json"),
			config.WithOverride("fetch.prefix", "site/"),
			config.WithOverride("delete.batch_size", 2),
		)
		So(err, ShouldBeNil)

		ctx := context.Background()
		application, err := New(ctx, cfg, WithProgressOutput(io.Discard), WithLogger(logger.Nop()))
		So(err, ShouldBeNil)
		defer application.Shutdown()

		bucket := filepath.Join(tempDir, "bucket")

		Convey("When uploading the build directory", func() {
			stats, err := application.Upload(ctx)

			Convey("Every file should land under the prefix", func() {
				So(err, ShouldBeNil)
				So(stats, ShouldResemble, domain.RunStats{Total: 3, Success: 3})

				content, err := os.ReadFile(filepath.Join(bucket, "site", "static", "app.js"))
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "console.log(1)")
			})

			Convey("The report should be written and published", func() {
				_, err := os.Stat(filepath.Join(tempDir, "stowage-upload.json"))
				So(err, ShouldBeNil)
				_, err = os.Stat(filepath.Join(bucket, "reports", "last-upload.json"))
				So(err, ShouldBeNil)
			})

			Convey("A second run should not overwrite existing objects", func() {
				stats, err := application.Upload(ctx)
				So(err, ShouldBeNil)
				So(stats, ShouldResemble, domain.RunStats{Total: 3, Fail: 3})

				data, _ := os.ReadFile(filepath.Join(tempDir, "stowage-upload.json"))
				var report domain.Report
				So(json.Unmarshal(data, &report), ShouldBeNil)
				So(report.Fail[0].Msg, ShouldEqual, "file exists")
				So(report.Fail[0].Kind, ShouldEqual, domain.FailureProtocol)
			})

			Convey("Fetch then delete should empty the prefix", func() {
				keys, err := application.Fetch(ctx, "")
				So(err, ShouldBeNil)
				sort.Strings(keys)
				So(keys, ShouldResemble, []string{"site/index.html", "site/static/app.js", "site/static/site.css"})

				So(application.Delete(ctx), ShouldBeNil)

				data, err := os.ReadFile(filepath.Join(tempDir, "stowage-batch-delete.json"))
				So(err, ShouldBeNil)
				var outcomes []domain.DeleteOutcome
				So(json.Unmarshal(data, &outcomes), ShouldBeNil)
				So(outcomes, ShouldHaveLength, 3)
				for _, o := range outcomes {
					So(o.Code, ShouldEqual, 200)
				}

				remaining, err := application.Fetch(ctx, "site/")
				So(err, ShouldBeNil)
				So(remaining, ShouldBeEmpty)
			})
		})

		Convey("When deleting before any fetch", func() {
			err := application.Delete(ctx)

			Convey("It should be skipped without an error", func() {
				So(err, ShouldBeNil)
				_, statErr := os.Stat(filepath.Join(tempDir, "stowage-batch-delete.json"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When scheduling with an invalid spec", func() {
			err := application.RunScheduled(ctx, "not a cron spec")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to schedule upload")
		})

		Convey("When the scheduling context is already done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(application.RunScheduled(cctx, "0 */5 * * * *"), ShouldBeNil)
		})
	})
}

func TestAppDefaultWorkingDirectory(t *testing.T) {
	Convey("Given a build directory in the process working directory", t, func() {
		tempDir := t.TempDir()
		t.Chdir(tempDir)

		for _, name := range []string{
			"dist/index.html",
			"dist/static/app.js",
			"dist/maps/app.js.map",
		} {
			path := filepath.FromSlash(name)
			So(os.MkdirAll(filepath.Dir(path), 0755), ShouldBeNil)
			So(os.WriteFile(path, []byte(name), 0644), ShouldBeNil)
		}

		cfg, err := config.Load("",
			config.WithOverride("storage.backend", config.BackendLocal),
			config.WithOverride("storage.local_path", "bucket"),
		)
		So(err, ShouldBeNil)

		ctx := context.Background()
		application, err := New(ctx, cfg, WithProgressOutput(io.Discard), WithLogger(logger.Nop()))
		So(err, ShouldBeNil)
		defer application.Shutdown()

		Convey("When uploading with the default settings", func() {
			stats, err := application.Upload(ctx)
			So(err, ShouldBeNil)

			Convey("Keys should be relative to dist and skip its other subdirectories", func() {
				So(stats, ShouldResemble, domain.RunStats{Total: 2, Success: 2})

				content, err := os.ReadFile(filepath.Join(tempDir, "bucket", "static", "app.js"))
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "dist/static/app.js")

				data, err := os.ReadFile(filepath.Join(tempDir, "stowage-upload.json"))
				So(err, ShouldBeNil)
				var report domain.Report
				So(json.Unmarshal(data, &report), ShouldBeNil)

				keys := make([]string, 0, len(report.Success))
				for _, s := range report.Success {
					keys = append(keys, s.Key)
				}
				sort.Strings(keys)
				So(keys, ShouldResemble, []string{"index.html", "static/app.js"})
			})
		})
	})
}
