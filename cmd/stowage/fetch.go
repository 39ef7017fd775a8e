package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/semmidev/stowage/internal/app"
	"github.com/semmidev/stowage/internal/config"
)

var (
	fetchPrefix   string
	fetchPageSize int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "List every key under a prefix and save the list for delete",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchPrefix, "prefix", "", "key prefix to list (default fetch.prefix)")
	fetchCmd.Flags().IntVar(&fetchPageSize, "page-size", 0, "keys per listing request")
}

func runFetch(cmd *cobra.Command, args []string) error {
	var overrides []config.Option
	if cmd.Flags().Changed("prefix") {
		overrides = append(overrides, config.WithOverride("fetch.prefix", fetchPrefix))
	}
	if cmd.Flags().Changed("page-size") {
		overrides = append(overrides, config.WithOverride("fetch.page_size", fetchPageSize))
	}

	return withApp(cmd, overrides, func(ctx context.Context, a *app.App) error {
		_, err := a.Fetch(ctx, "")
		return err
	})
}
