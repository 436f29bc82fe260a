package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keybridge-cli/keybridge/internal/keycombo"
)

var flagModifier string

func init() {
	pressCmd.Flags().StringVarP(&flagModifier, "modifier", "m", "control",
		"Requested modifier (control or meta); the platform decides the one actually held")
}

var pressCmd = &cobra.Command{
	Use:   "press <selector> <key>",
	Short: "Emulate a modifier+key shortcut on an element",
	Long: `press dispatches modifier keydown, character keydown and modifier keyup
against the first element matching the CSS selector. When no page listener
cancels the character keydown and the key is "a", the browser's native
select-all command runs, as it would for a real shortcut.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		selector, key := args[0], args[1]

		requested, err := keycombo.ParseModifier(flagModifier)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		mgr := newManager(cfg)
		defer mgr.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		element, err := mgr.ResolveSelector(ctx, selector)
		if err != nil {
			return err
		}

		bridge := keycombo.Bridge(mgr)
		if cfg.Emulate.Platform != "" {
			bridge = keycombo.FixedPlatform(mgr, cfg.Emulate.Platform)
		}

		if err := keycombo.Press(ctx, bridge, element, key, requested); err != nil {
			return fmt.Errorf("press failed: %w", err)
		}

		if flagVerbose {
			platform, perr := bridge.Platform(ctx)
			if perr == nil {
				fmt.Fprintf(os.Stderr, "[debug] platform=%s modifier=%s\n",
					platform, keycombo.DeriveModifier(platform))
			}
		}
		return nil
	},
}
