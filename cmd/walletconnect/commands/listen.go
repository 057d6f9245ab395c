package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"walletconnect/internal/domain"
	"walletconnect/internal/services/session"
)

// listen: stay connected, answer peer requests and print what happens until
// interrupted.
func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and print pairing and session events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := wire.WaitConnected(wctx)
			cancel()
			if err != nil {
				return err
			}

			cancels := []func(){
				wire.Relay.OnConnectionStatus(func(s domain.ConnectionStatus) {
					fmt.Printf("%s relay %s\n", stamp(), s)
				}),
				wire.Pairings.OnPing(func(t domain.Topic) { fmt.Printf("%s pairing %s pong\n", stamp(), t) }),
				wire.Pairings.OnDelete(func(t domain.Topic) { fmt.Printf("%s pairing %s deleted by peer\n", stamp(), t) }),
				wire.Pairings.OnExpired(func(p domain.Pairing) { fmt.Printf("%s pairing %s expired\n", stamp(), p.Topic) }),
				wire.Sessions.OnUpdate(func(e session.UpdateEvent) {
					fmt.Printf("%s session %s namespaces updated (%d)\n", stamp(), e.Topic, len(e.Namespaces))
				}),
				wire.Sessions.OnExtend(func(e session.ExtendEvent) {
					fmt.Printf("%s session %s extended until %s\n", stamp(), e.Topic, e.Expiry.Format(time.RFC3339))
				}),
				wire.Sessions.OnDelete(func(e session.DeleteEvent) {
					fmt.Printf("%s session %s deleted by peer: %s (%d)\n", stamp(), e.Topic, e.Reason.Message, e.Reason.Code)
				}),
				wire.Sessions.OnPing(func(t domain.Topic) { fmt.Printf("%s session %s pong\n", stamp(), t) }),
				wire.Sessions.OnExpired(func(s domain.Session) { fmt.Printf("%s session %s expired\n", stamp(), s.Topic) }),
			}
			defer func() {
				for _, c := range cancels {
					c()
				}
			}()

			fmt.Println("listening, press Ctrl-C to stop")
			sweep := time.NewTicker(time.Minute)
			defer sweep.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sweep.C:
					if err := wire.Pairings.Sweep(); err != nil {
						wire.Log.Warn().Err(err).Msg("sweep pairings")
					}
					if err := wire.Sessions.Sweep(); err != nil {
						wire.Log.Warn().Err(err).Msg("sweep sessions")
					}
				}
			}
		},
	}
}

func stamp() string { return time.Now().Format("15:04:05") }
