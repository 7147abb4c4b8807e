package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evreco/infra/ocm"
)

var ocmMockOpts struct {
	addr     string
	fixtures string
}

var ocmMockCmd = &cobra.Command{
	Use:   "ocm-mock",
	Short: "Serve fixture stations on an OpenChargeMap compatible endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		stations, err := ocm.LoadFixtures(ocmMockOpts.fixtures)
		if err != nil {
			return err
		}
		return ocm.NewServerMock(ocmMockOpts.addr, stations, nil).Start(ctx)
	},
}

func init() {
	ocmMockCmd.Flags().StringVar(&ocmMockOpts.addr, "addr", ":9090", "listen address")
	ocmMockCmd.Flags().StringVar(&ocmMockOpts.fixtures, "fixtures", "infra/ocm/testdata/paris.json", "JSON array of raw stations")
	rootCmd.AddCommand(ocmMockCmd)
}
