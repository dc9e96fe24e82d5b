package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vce/pkg/agent"
	"vce/pkg/model"
)

func newWatchCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "watch <config>",
		Short: "Print parameter updates pushed for a host",
		Long: `Subscribe to the server websocket and print every change of the host's
parameter map as one JSON line. Nothing is applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			base := opts.serverURL(cfg, agent.LoadAliases())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = agent.Watch(ctx, base, opts.host, opts.token, func(u model.ParamUpdate) {
				_ = enc.Encode(u)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	opts.register(cmd)
	return cmd
}
