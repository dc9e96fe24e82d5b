// Command vce-agent runs on every constellation node and shapes its
// outgoing traffic with the parameters served by vce-server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vce/pkg/agent"
	"vce/pkg/config"
	"vce/pkg/logging"
	"vce/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:           "vce-agent",
	Short:         "Virtual constellation emulator node agent",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// common flags shared by run and watch
type options struct {
	host     string
	server   string
	token    string
	caFile   string
	certFile string
	keyFile  string
	insecure bool
}

func (o *options) register(cmd *cobra.Command) {
	hostname, _ := os.Hostname()
	cmd.Flags().StringVar(&o.host, "host", hostname, "run as the given source host")
	cmd.Flags().StringVar(&o.server, "server", "", "server base URL (default from config)")
	cmd.Flags().StringVar(&o.token, "token", os.Getenv("VCE_AGENT_TOKEN"), "bearer token (env VCE_AGENT_TOKEN)")
}

func (o *options) registerTLS(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.caFile, "ca", "", "CA file for server TLS")
	cmd.Flags().StringVar(&o.certFile, "cert", "", "client TLS certificate (for mTLS)")
	cmd.Flags().StringVar(&o.keyFile, "key", "", "client TLS key (for mTLS)")
	cmd.Flags().BoolVar(&o.insecure, "insecure", false, "skip TLS verify for server (not recommended)")
}

// serverURL resolves the server alias and builds its base URL.
func (o *options) serverURL(cfg config.Config, aliases agent.Aliases) string {
	if o.server != "" {
		return o.server
	}
	sc := cfg.System.Server
	return agent.ServerURL(aliases.Resolve(sc.Hostname), sc.Port, sc.TLSCert != "")
}

func main() {
	rootCmd.Version = version.Build
	rootCmd.AddCommand(newRunCmd(), newWatchCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		return config.Config{}, fmt.Errorf("logging: %w", err)
	}
	return cfg, nil
}
