// Package commands implements the mgmtbckndd CLI commands, structured the
// same way dittofs's cmd/dittofs/commands package is: one cobra.Command
// per file, a shared rootCmd wired up in init, and an exported Execute
// entry point called once from main.main.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time via -ldflags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mgmtbckndd",
	Short: "mgmtbckndd - management-plane backend adapter daemon",
	Long: `mgmtbckndd accepts connections from backend client processes over the
management-plane protocol, reassembles and dispatches their framed messages,
and drives the single-threaded reactor that serializes all of it onto one
goroutine.

Use "mgmtbckndd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for use by command-line tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML tunables file (default: package defaults)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the config file path from the global --config flag.
func GetConfigFile() string {
	return cfgFile
}

// Exit prints an error to stderr and exits with status 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
