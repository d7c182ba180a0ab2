// Package cli wires the configuration, identity, task API and local store
// into the tasksuite command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/task-suite/internal/model"
)

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	envFile    string
	verbose    bool
}

// NewRootCmd builds the command tree. Running the root command without a
// sub-command starts the terminal UI.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "tasksuite",
		Short: "Task Suite terminal client",
		Long: `Task Suite shows your organization's tasks as a board grouped by status.

Run without arguments to start the interactive board. The sub-commands
sign in and out and print tasks without starting the UI.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newTasksCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// Execute runs the command tree against os.Args. The command context is
// cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads the dotenv file, when present, and then the config
// file with environment overrides applied.
func loadConfig(opts *options) (*model.AppConfig, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", opts.envFile, err)
		}
	}
	return model.LoadConfig(opts.configPath)
}

// setupCLILogging sends log output to stderr with --verbose and discards
// it otherwise.
func setupCLILogging(opts *options) {
	if opts.verbose {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(io.Discard)
}
