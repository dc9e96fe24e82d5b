package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vce/pkg/api"
	"vce/pkg/auth"
	"vce/pkg/clock"
	"vce/pkg/config"
	"vce/pkg/orbits"
	"vce/pkg/resolver"
	"vce/pkg/store"
)

func newRunCmd() *cobra.Command {
	var (
		listen string
		port   int
	)
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Start the parameter server",
		Long: `Start the parameter server. Orbit positions are computed into the
store first when it holds none (always the case for the memory store).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.System.Server.Listen = listen
			}
			if port > 0 {
				cfg.System.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

// ensurePositions fills st from the orbit config unless it already holds
// samples, and reports whether it computed them.
func ensurePositions(ctx context.Context, cfg config.Config, st store.PositionStore) (bool, error) {
	has, err := store.HasSamples(ctx, st)
	if err != nil {
		return false, fmt.Errorf("inspect store: %w", err)
	}
	if has {
		log.Infof("store already holds positions; skipping orbit computation")
		return false, nil
	}
	log.Infof("store is empty; computing orbits")
	if _, err := orbits.Compute(ctx, cfg, st); err != nil {
		return false, fmt.Errorf("compute orbits: %w", err)
	}
	return true, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	st, err := store.Open(ctx, cfg.System.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if _, err := ensurePositions(ctx, cfg, st); err != nil {
		return err
	}

	clk, err := clock.New(cfg.System.Orbits.Start, cfg.OrbitsEnd(), time.Now())
	if err != nil {
		return err
	}
	res := resolver.New(clk, st, cfg.Hostnames())
	srv := api.NewServer(res, api.Options{
		Issuer:        auth.NewIssuer(cfg.System.Auth.Secret, cfg.TokenTTL()),
		PasswordHash:  cfg.System.Auth.PasswordHash,
		RateLimit:     cfg.System.Server.RateLimit,
		RateBurst:     cfg.System.Server.RateBurst,
		WatchInterval: cfg.WatchInterval(),
		Nodes:         cfg.Nodes(),
		Store:         st,
	})
	defer srv.Hub().Close()

	sc := cfg.System.Server
	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(sc.Listen, strconv.Itoa(sc.Port)),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s (simulated %s .. %s)", httpSrv.Addr,
			cfg.System.Orbits.Start.Format(time.RFC3339), cfg.OrbitsEnd().Format(time.RFC3339))
		if api.TLSEnabled(sc) {
			tlsCfg, err := api.ServerTLSConfig(sc)
			if err != nil {
				errCh <- fmt.Errorf("failed to build TLS config: %w", err)
				return
			}
			httpSrv.TLSConfig = tlsCfg
			errCh <- httpSrv.ListenAndServeTLS("", "")
			return
		}
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Hub().Close()
	return httpSrv.Shutdown(shutdownCtx)
}
