package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/doherty-labs/health-app-demo/pkg/gateway"
)

var debugMode bool

func newGateway() (*gateway.Gateway, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debugMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	return gateway.NewGateway()
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "gpctl",
		Short:        "Operations tooling for the practice search gateway",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newCreateIndexesCmd(),
		newResetIndexesCmd(),
		newReindexCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newCreateIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-indexes",
		Short: "Provision any missing entity indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := newGateway()
			if err != nil {
				return err
			}
			return gw.CreateIndexes(cmd.Context())
		},
	}
}

func newResetIndexesCmd() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset-indexes",
		Short: "Delete every entity index and provision fresh empty ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to destroy indexes without --yes")
			}

			gw, err := newGateway()
			if err != nil {
				return err
			}
			return gw.ResetIndexes(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm destructive reset")
	return cmd
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [patient|practice|appointment|all]",
		Short: "Rebuild an entity index from the system-of-record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := newGateway()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			switch args[0] {
			case "all":
				return gw.ReindexAll(ctx)
			case "patient":
				return gw.Patients.RecreateIndex(ctx)
			case "practice":
				return gw.Practices.RecreateIndex(ctx)
			case "appointment":
				return gw.Appointments.RecreateIndex(ctx)
			default:
				return fmt.Errorf("unknown index %q", args[0])
			}
		},
	}
}
