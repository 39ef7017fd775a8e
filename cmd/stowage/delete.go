package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/semmidev/stowage/internal/app"
	"github.com/semmidev/stowage/internal/config"
)

var deleteBatchSize int

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Batch-delete the keys saved by fetch",
	Long: `Read the key list written by fetch and delete the keys in sequential
batches. A failed batch is logged and skipped. Per-key outcomes are written
to delete.output.`,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().IntVar(&deleteBatchSize, "batch-size", 0, "keys per delete request (max 1000)")
}

func runDelete(cmd *cobra.Command, args []string) error {
	var overrides []config.Option
	if cmd.Flags().Changed("batch-size") {
		overrides = append(overrides, config.WithOverride("delete.batch_size", deleteBatchSize))
	}

	return withApp(cmd, overrides, func(ctx context.Context, a *app.App) error {
		return a.Delete(ctx)
	})
}
