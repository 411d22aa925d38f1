package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var (
	flagConfig  string
	flagVerbose bool
	flagJSONLog bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sduseat",
		Short: "Automated SDU library seat booking at the daily release instant",
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config.json (default ./config.json)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&flagJSONLog, "log-json", false, "JSON log output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newBookCmd())
	root.AddCommand(newSeatsCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newCancelCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
