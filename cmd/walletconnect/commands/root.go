package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"walletconnect/internal/app"
)

var (
	configPath string
	dataDir    string
	passphrase string
	relayURL   string
	projectID  string
	logLevel   string
	manual     bool
	timeout    time.Duration

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:           "walletconnect",
		Short:         "WalletConnect pairing and session client",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			wire, err = app.Open(ctx, cfg, os.Stderr)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", "", "TOML config file")
	f.StringVar(&dataDir, "data-dir", "", "state directory (default ~/.walletconnect)")
	f.StringVarP(&passphrase, "passphrase", "p", "", "keychain passphrase (or WC_PASSPHRASE)")
	f.StringVar(&relayURL, "relay", "", "relay websocket URL")
	f.StringVar(&projectID, "project-id", "", "relay project id")
	f.StringVar(&logLevel, "log-level", "", "trace|debug|info|warn|error")
	f.BoolVar(&manual, "manual", false, "connect to the relay only on demand")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "timeout for relay round trips")

	root.AddCommand(clientIDCmd(), pairCmd(), sessionCmd(), listenCmd())
	return root.Execute()
}

// loadConfig reads --config and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	cfg, err := app.ReadConfig(configPath)
	if err != nil {
		return app.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("passphrase") {
		cfg.Passphrase = passphrase
	}
	if flags.Changed("relay") {
		cfg.RelayURL = relayURL
	}
	if flags.Changed("project-id") {
		cfg.ProjectID = projectID
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("manual") {
		cfg.Manual = manual
	}
	if err := cfg.Validate(); err != nil {
		return app.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// online returns a context bounded by --timeout once the relay is up.
func online(cmd *cobra.Command) (context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	if err := wire.WaitConnected(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	return ctx, cancel, nil
}
