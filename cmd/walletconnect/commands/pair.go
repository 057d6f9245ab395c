package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"walletconnect/internal/domain"
	"walletconnect/internal/protocol/uri"
)

func pairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Manage pairings",
	}
	cmd.AddCommand(pairCreateCmd(), pairConnectCmd(), pairListCmd(), pairPingCmd(), pairDeleteCmd())
	return cmd
}

func pairCreateCmd() *cobra.Command {
	var methods []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pairing and print its URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			u, err := wire.Pairings.Create(ctx, methods...)
			if err != nil {
				return err
			}
			fmt.Println(u.String())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&methods, "methods", []string{"wc_sessionPropose"}, "methods registered on the pairing")
	return cmd
}

func pairConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <uri>",
		Short: "Pair with a peer from its wc: URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := uri.Parse(args[0])
			if err != nil {
				return err
			}
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			p, err := wire.Pairings.Pair(ctx, u)
			if err != nil {
				return err
			}
			fmt.Printf("paired on %s (expires %s)\n", p.Topic, p.ExpiryDate().Format(time.RFC3339))
			return nil
		},
	}
}

func pairListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored pairings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pairings, err := wire.Pairings.List()
			if err != nil {
				return err
			}
			if len(pairings) == 0 {
				fmt.Println("no pairings")
				return nil
			}
			for _, p := range pairings {
				peer := "-"
				if p.PeerMetadata != nil {
					peer = p.PeerMetadata.Name
				}
				fmt.Printf("%s  active=%-5t  expires=%s  peer=%s\n",
					p.Topic, p.Active, p.ExpiryDate().Format(time.RFC3339), peer)
			}
			return nil
		},
	}
}

func pairPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping <topic>",
		Short: "Ping the peer of a pairing and wait for the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := domain.Topic(args[0])
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			done := make(chan struct{}, 1)
			stop := wire.Pairings.OnPing(func(t domain.Topic) {
				if t == topic {
					done <- struct{}{}
				}
			})
			defer stop()

			start := time.Now()
			if err := wire.Pairings.Ping(ctx, topic); err != nil {
				return err
			}
			select {
			case <-done:
				fmt.Printf("pong from %s in %s\n", topic, time.Since(start).Round(time.Millisecond))
				return nil
			case <-ctx.Done():
				return fmt.Errorf("no answer from peer: %w", ctx.Err())
			}
		},
	}
}

func pairDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <topic>",
		Short: "Delete a pairing and notify the peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			if err := wire.Pairings.Delete(ctx, domain.Topic(args[0])); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}
