package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the debuggable targets Chrome exposes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		mgr := newManager(cfg)
		defer mgr.Close()

		targets, err := mgr.Targets()
		if err != nil {
			return fmt.Errorf("Chrome CDP not available: %w", err)
		}

		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return json.NewEncoder(os.Stdout).Encode(targets)
		}

		for _, t := range targets {
			fmt.Printf("%-14s %-8s %q %s\n", t.ID, t.Type, t.Title, t.URL)
		}
		return nil
	},
}
