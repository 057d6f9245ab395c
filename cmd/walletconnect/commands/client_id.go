package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func clientIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "client-id",
		Short: "Print the relay client id and its fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := wire.Identity.ClientID()
			if err != nil {
				return err
			}
			fp, err := wire.Identity.Fingerprint()
			if err != nil {
				return err
			}
			fmt.Printf("Client ID:   %s\nFingerprint: %s\n", id, fp)
			return nil
		},
	}
}
