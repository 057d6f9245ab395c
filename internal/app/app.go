package app

import (
	"context"
	"io"

	"walletconnect/internal/logging"
)

// Open builds the logger and the wire for cfg and starts it. The caller
// closes the returned wire.
func Open(ctx context.Context, cfg Config, logOut io.Writer) (*Wire, error) {
	log := logging.New("walletconnect", cfg.LogLevel, logOut)
	w, err := NewWire(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	log.Info().Str("relay", cfg.RelayURL).Bool("manual", cfg.Manual).Msg("client started")
	return w, nil
}
