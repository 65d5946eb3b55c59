package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"dycrawler/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dycrawler",
	Short: "Download every video of a Douyin creator",
	Long: `dycrawler walks the public post list of a Douyin account and saves
every video into a local folder.

Features:
  - Paginated catalogue walk with a page ceiling
  - Sequential or bounded-concurrent downloads with a pacing gate
  - Retry with exponential backoff on transient failures
  - Cancellation from the keyboard at any point
  - Static cookie storage in the system keychain or an encrypted file
  - Plain progress bar or full-screen terminal UI`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetNoColor(true)
		}
		if quiet {
			return
		}
		switch cmd.Name() {
		case "version", "help", "completion":
		default:
			ui.PrintBanner(cmd.OutOrStdout())
		}
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(os.Stderr, "Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.dycrawler.yaml or ~/.config/dycrawler/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "notify when the crawl ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the banner and progress output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every log line above the progress bar")

	rootCmd.SetVersionTemplate(`dycrawler {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags the user set explicitly
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("notifications") {
		flags["notify"] = notifications
	}
	return flags
}
