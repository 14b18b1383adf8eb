// Command cutpilot is the local agent that turns chat requests into timeline
// edits. It serves the panel API, or runs single requests from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cutpilot/cutpilot-agent/internal/config"
)

var (
	envFile  string
	timeline string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cutpilot",
	Short: "Chat-driven editing agent",
	Long: `cutpilot sends chat requests to the inference service, gathers the
audio and frames it asks for from the open timeline, and applies the edit
commands it returns.`,
	Version:       fmt.Sprintf("%s (%s, %s)", config.Version, config.GitCommit, config.BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file read before the environment")
	rootCmd.PersistentFlags().StringVarP(&timeline, "timeline", "t", "", "Timeline YAML file (overrides "+config.EnvTimeline+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides "+config.EnvLogLevel+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(edlCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
