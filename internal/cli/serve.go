package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tutorhall/livehelp/internal/config"
	"github.com/tutorhall/livehelp/internal/gateway"
	"github.com/tutorhall/livehelp/internal/help"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the livehelp server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			registry := help.NewRegistry(time.Duration(cfg.Help.IdleMinutes)*time.Minute, log.Sub("registry"))
			validator := gateway.NewRosterValidator(cfg.Roster)
			if len(cfg.Roster) == 0 {
				log.Warn().Msg("roster is empty, every handshake will be rejected")
			}

			srv := gateway.New(cfg, registry, validator, log)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Periodic driver for idle-session eviction; the registry only
			// exposes the primitive.
			go runSweeper(ctx, registry, time.Duration(cfg.Help.SweepMinutes)*time.Minute)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// runSweeper invokes the registry sweep on a fixed interval until the
// context is cancelled.
func runSweeper(ctx context.Context, registry *help.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if evicted := registry.Sweep(now); evicted > 0 {
				log.Info().Int("evicted", evicted).Msg("idle sweep complete")
			}
		case <-ctx.Done():
			return
		}
	}
}
