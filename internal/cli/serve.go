package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keybridge-cli/keybridge/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP automation worker",
	Long: `serve exposes press/open/selection over HTTP on the configured worker port
and streams emulated-shortcut records to /events websocket subscribers. Set
worker.auth_token in the config to require a bearer token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		srv := worker.NewServer(*cfg, newManager(cfg))

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			<-sigCh
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Printf("[worker] shutdown: %v", err)
			}
		}()

		return srv.ListenAndServe()
	},
}
