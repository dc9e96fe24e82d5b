package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vce/pkg/agent"
	"vce/pkg/metrics"
)

func newRunCmd() *cobra.Command {
	var (
		opts        options
		metricsAddr string
		tcset       string
	)
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run the agent",
		Long: `Start querying the server for this node's parameters and apply them
with tcset. Needs CAP_NET_ADMIN for tc.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			aliases := agent.LoadAliases()
			client, err := agent.NewHTTPClient(opts.caFile, opts.certFile, opts.keyFile, opts.insecure)
			if err != nil {
				return err
			}
			src, err := agent.NewHTTPSource(opts.serverURL(cfg, aliases), opts.token, client)
			if err != nil {
				return err
			}
			shaper := agent.NewTCSet()
			if tcset != "" {
				shaper.Binary = tcset
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if metricsAddr != "" {
				go serveMetrics(ctx, metricsAddr)
			}

			a := agent.New(agent.Options{
				Host:     opts.host,
				Interval: cfg.PollInterval(),
				Source:   src,
				Shaper:   shaper,
				Aliases:  aliases,
			})
			err = a.Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Infof("agent stopped")
				return nil
			}
			return err
		},
	}
	opts.register(cmd)
	opts.registerTLS(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&tcset, "tcset", "", "path to the tcset binary")
	return cmd
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	log.Infof("agent metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("metrics server: %v", err)
	}
}
