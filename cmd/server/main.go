// Command vce-server propagates the constellation orbits and answers the
// node agents' parameter queries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vce/pkg/config"
	"vce/pkg/logging"
	"vce/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:           "vce-server",
	Short:         "Virtual constellation emulator server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.Version = version.Build
	rootCmd.AddCommand(newRunCmd(), newOrbitsCmd(), newTokenCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the constellation file and sets up logging from it.
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
