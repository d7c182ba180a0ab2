package cli

import (
	"fmt"
	"log"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/task-suite/internal/app"
	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/profile"
)

// logFileName is the debug log written under the config dir while the UI
// owns the terminal.
const logFileName = "debug.log"

// runTUI starts the interactive board.
func runTUI(_ *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logPath := filepath.Join(model.ConfigDir(), logFileName)
	if err := ensureDir(logPath); err != nil {
		return err
	}
	f, err := tea.LogToFile(logPath, "tasksuite")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	svc, err := openServices(cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	deps := app.Deps{
		Config:    *cfg,
		Tasks:     svc.tasks,
		Identity:  svc.identity,
		Directory: svc.graph,
		Profile:   profile.NewStore(),
		Store:     svc.store,
	}
	if p := svc.poller(); p != nil {
		deps.Poller = p
	}

	log.Printf("cli: starting ui, api %s", cfg.API.BaseURL)
	prog := tea.NewProgram(app.New(deps), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
