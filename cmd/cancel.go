package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel an existing reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.guard.EnsureValid(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.client.Cancel(cmd.Context(), args[0], state); err != nil {
				return err
			}
			fmt.Printf("reservation %s cancelled\n", args[0])
			return nil
		},
	}
}
