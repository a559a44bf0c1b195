package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fentz26/orange/internal/config"
	"github.com/fentz26/orange/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orange",
	Short: "orange - voice-command desktop automation",
	Long: `orange turns a spoken (or typed) command into UI actions on the desktop.
The daemon owns the session; the other commands drive it over the local control API.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
	logLevel   string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "Control API address (default: http://<control.listen>)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(providerCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings loads the config once for every command and derives the
// control API address from it unless --api was given.
func loadSettings(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	cfg = c

	if apiAddr == "" {
		apiAddr = cfg.Control.Listen
	}
	if !strings.HasPrefix(apiAddr, "http://") && !strings.HasPrefix(apiAddr, "https://") {
		apiAddr = "http://" + apiAddr
	}
	return nil
}

func main() {
	err := rootCmd.Execute()
	logging.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
