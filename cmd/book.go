package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Toskysun/sdu-seat/internal/engine"
)

func newBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book",
		Short: "Book configured seats right now, without waiting for the trigger time",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.runOnce(cmd.Context())
			if report.Status != engine.RunSucceeded && report.Booked() == 0 {
				return fmt.Errorf("no seat booked (%s after %d passes)", report.Status, report.Passes)
			}
			return nil
		},
	}
}
