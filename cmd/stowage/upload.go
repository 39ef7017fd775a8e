package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/semmidev/stowage/internal/app"
	"github.com/semmidev/stowage/internal/config"
)

var (
	uploadParallel int
	uploadSchedule string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload every file matching the configured glob",
	Long: `Upload every file matching upload.glob below upload.cwd. Keys are
upload.key_prefix followed by the path relative to upload.base. A report
of successes and failures is written to upload.output.

With --schedule the upload repeats on a six-field cron spec until
interrupted.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().IntVarP(&uploadParallel, "parallel", "p", 0, "number of concurrent uploads")
	uploadCmd.Flags().StringVar(&uploadSchedule, "schedule", "", "cron spec with seconds, e.g. \"0 0 * * * *\"")
}

func runUpload(cmd *cobra.Command, args []string) error {
	var overrides []config.Option
	if cmd.Flags().Changed("parallel") {
		overrides = append(overrides, config.WithOverride("upload.parallel_count", uploadParallel))
	}
	if cmd.Flags().Changed("schedule") {
		overrides = append(overrides, config.WithOverride("upload.schedule", uploadSchedule))
	}

	return withApp(cmd, overrides, func(ctx context.Context, a *app.App) error {
		if spec := a.Config().Upload.Schedule; spec != "" {
			return a.RunScheduled(ctx, spec)
		}
		_, err := a.Upload(ctx)
		return err
	})
}
