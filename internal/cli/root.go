package cli

import (
	"github.com/spf13/cobra"

	"github.com/keybridge-cli/keybridge/internal/browser"
	"github.com/keybridge-cli/keybridge/internal/config"
)

var (
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "keybridge",
	Short: "keybridge - keyboard shortcut emulation for pages under test",
	Long: `keybridge emulates modifier+character keyboard shortcuts inside pages of a
running Chrome instance, over the DevTools Protocol. Shortcut handlers in the
page see the same event sequence a real user's browser would produce,
including preventDefault semantics for the native select-all fallback.

Quick start:
  keybridge open https://example.com     # Point the attached page somewhere
  keybridge press "#editor" a            # Emulate Ctrl+A / Cmd+A on an element
  keybridge selection                    # Inspect what got selected
  keybridge targets                      # List debuggable targets
  keybridge serve                        # Expose the same commands over HTTP

Chrome must be started with --remote-debugging-port (9222 by default).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file path")

	rootCmd.AddCommand(versionCmd)

	// Page commands
	rootCmd.AddCommand(pressCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(selectionCmd)
	rootCmd.AddCommand(targetsCmd)

	// Worker mode
	rootCmd.AddCommand(serveCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

var (
	versionStr   = "dev"
	commitStr    = "unknown"
	buildTimeStr = "unknown"
)

func SetVersionInfo(version, commit, buildTime string) {
	versionStr = version
	commitStr = commit
	buildTimeStr = buildTime
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("keybridge version {{.Version}}\n")
}

func loadConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}

func newManager(cfg *config.Config) *browser.Manager {
	return browser.NewManager(cfg.CDP.Host, cfg.CDP.Port)
}
