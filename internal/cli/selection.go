package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var selectionCmd = &cobra.Command{
	Use:   "selection",
	Short: "Print the attached page's current text selection",
	Long: `selection reads window.getSelection() from the page. Test harnesses use it
after press to verify the visible effect of an emulated shortcut, e.g. that
select-all actually fired (or was suppressed by a preventDefault handler).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		mgr := newManager(cfg)
		defer mgr.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		text, err := mgr.Selection(ctx)
		if err != nil {
			return err
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Println(text)
			return nil
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]string{"selection": text})
	},
}
