package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"walletconnect/internal/logging"
	"walletconnect/internal/metrics"
	"walletconnect/internal/relayserver"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr        string
		metricsAddr string
		logLevel    string
		verifyAuth  bool
		sweepEvery  time.Duration
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "In-memory irn relay for local development",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New("relay", logLevel, os.Stderr)
			metrics.RegisterMetrics()

			srv := relayserver.New(relayserver.Config{VerifyAuth: verifyAuth, Logger: log})
			mux := http.NewServeMux()
			mux.Handle("/", srv)
			servers := []*http.Server{{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}}
			if metricsAddr == "" {
				mux.Handle("/metrics", promhttp.Handler())
			} else {
				m := http.NewServeMux()
				m.Handle("/metrics", promhttp.Handler())
				servers = append(servers, &http.Server{Addr: metricsAddr, Handler: m, ReadHeaderTimeout: 10 * time.Second})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)

			for _, hs := range servers {
				g.Go(func() error {
					log.Info().Str("addr", hs.Addr).Msg("listening")
					if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
			}
			g.Go(func() error {
				t := time.NewTicker(sweepEvery)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-t.C:
						srv.Sweep()
					}
				}
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				var errs []error
				for _, hs := range servers {
					errs = append(errs, hs.Shutdown(shutdown))
				}
				log.Info().Msg("relay stopped")
				return errors.Join(errs...)
			})
			return g.Wait()
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "websocket listen address")
	f.StringVar(&metricsAddr, "metrics-addr", "", "separate listen address for /metrics (default: same as --addr)")
	f.StringVar(&logLevel, "log-level", "info", "trace|debug|info|warn|error")
	f.BoolVar(&verifyAuth, "verify-auth", false, "require a valid relay auth token")
	f.DurationVar(&sweepEvery, "sweep", time.Minute, "interval for dropping expired mailbox messages")
	return cmd
}
