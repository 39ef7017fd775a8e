package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semmidev/stowage/internal/app"
	"github.com/semmidev/stowage/internal/config"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigFile = "stowage.yaml"

var (
	cfgFile string
	debug   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stowage",
	Short: "Upload build output to object storage",
	Long: `Stowage uploads a directory of files to an object-storage bucket with a
bounded pool of workers, lists objects under a key prefix and batch-deletes
previously listed objects.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stowage %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every file instead of showing progress")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies flags that were set on the
// command line. The default file is optional; an explicit one is not.
func loadConfig(cmd *cobra.Command, overrides ...config.Option) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	if cmd.Flags().Changed("debug") {
		overrides = append(overrides, config.WithOverride("app.debug", debug))
	}

	cfg, err := config.Load(path, overrides...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withApp builds the application for one command and tears it down after.
func withApp(cmd *cobra.Command, overrides []config.Option, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd, overrides...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return fn(ctx, application)
}
