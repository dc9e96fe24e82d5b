package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vce/pkg/orbits"
	"vce/pkg/store"
)

func newOrbitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orbits",
		Short: "Satellite orbit propagation",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "compute <config>",
		Short: "Compute and save satellite and station positions",
		Long: `Propagate every satellite over the orbit window and write the samples,
plus one sample per ground station at the start time, to the configured
store. Useful with a persistent store shared by several servers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			if cfg.System.Store.Driver == "" || cfg.System.Store.Driver == "memory" {
				log.Warnf("store driver is memory; positions are discarded when this command exits")
			}
			ctx := cmd.Context()
			st, err := store.Open(ctx, cfg.System.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()
			n, err := orbits.Compute(ctx, cfg, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d position samples\n", n)
			return nil
		},
	})
	return cmd
}
