package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Navigate the attached page to a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		mgr := newManager(cfg)
		defer mgr.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := mgr.Navigate(ctx, args[0]); err != nil {
			return err
		}

		if flagVerbose {
			if title, err := mgr.Title(ctx); err == nil {
				fmt.Printf("%s\n", title)
			}
		}
		return nil
	},
}
