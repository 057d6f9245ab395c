package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"walletconnect/internal/domain"
	"walletconnect/internal/services/session"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage settled sessions",
	}
	cmd.AddCommand(sessionListCmd(), sessionUpdateCmd(), sessionExtendCmd(), sessionPingCmd(), sessionDeleteCmd())
	return cmd
}

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List settled sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := wire.Sessions.List()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, s := range sessions {
				keys := make([]string, 0, len(s.Namespaces))
				for k := range s.Namespaces {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Printf("%s  controller=%-5t  expires=%s  namespaces=%s\n",
					s.Topic, s.SelfIsController, s.ExpiryDate().Format(time.RFC3339), strings.Join(keys, ","))
			}
			return nil
		},
	}
}

func sessionUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <topic> <namespaces-json>",
		Short: "Replace the namespaces of a session you control",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := domain.Topic(args[0])
			var ns domain.Namespaces
			if err := json.Unmarshal([]byte(args[1]), &ns); err != nil {
				return fmt.Errorf("parse namespaces: %w", err)
			}
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			done := make(chan struct{}, 1)
			stop := wire.Sessions.OnUpdate(func(e session.UpdateEvent) {
				if e.Topic == topic {
					done <- struct{}{}
				}
			})
			defer stop()

			if err := wire.Sessions.Update(ctx, topic, ns); err != nil {
				return err
			}
			select {
			case <-done:
				fmt.Println("update accepted")
				return nil
			case <-ctx.Done():
				return fmt.Errorf("update not confirmed: %w", ctx.Err())
			}
		},
	}
}

func sessionExtendCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "extend <topic>",
		Short: "Extend a session you control",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := domain.Topic(args[0])
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			done := make(chan time.Time, 1)
			stop := wire.Sessions.OnExtend(func(e session.ExtendEvent) {
				if e.Topic == topic {
					done <- e.Expiry
				}
			})
			defer stop()

			if err := wire.Sessions.Extend(ctx, topic, ttl); err != nil {
				return err
			}
			select {
			case exp := <-done:
				fmt.Printf("extended until %s\n", exp.Format(time.RFC3339))
				return nil
			case <-ctx.Done():
				return fmt.Errorf("extend not confirmed: %w", ctx.Err())
			}
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 7*24*time.Hour, "new lifetime from now")
	return cmd
}

func sessionPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping <topic>",
		Short: "Ping the peer of a session and wait for the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := domain.Topic(args[0])
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			done := make(chan struct{}, 1)
			stop := wire.Sessions.OnPing(func(t domain.Topic) {
				if t == topic {
					done <- struct{}{}
				}
			})
			defer stop()

			start := time.Now()
			if err := wire.Sessions.Ping(ctx, topic); err != nil {
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

func sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <topic>",
		Short: "Disconnect a session and notify the peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, err := online(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			if err := wire.Sessions.Disconnect(ctx, domain.Topic(args[0])); err != nil {
				return err
			}
			fmt.Println("disconnected")
			return nil
		},
	}
}
