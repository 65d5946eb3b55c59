package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dycrawler/pkg/auth"
	"dycrawler/pkg/config"
	"dycrawler/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage dycrawler configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - DYCRAWLER_* environment variables (also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration as YAML. The file is created as
'.dycrawler.yaml' in the current directory unless --config names another path.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging all sources. The cookie is masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".dycrawler.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.PrintSuccess(out, "Configuration file created: "+path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Store a cookie with 'dycrawler auth login' or set douyin.cookie")
	fmt.Fprintln(out, "2. Run 'dycrawler config validate' to check the file")
	fmt.Fprintln(out, "3. Start downloading with 'dycrawler crawl <profile-url>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	if display.Douyin.Cookie != "" {
		display.Douyin.Cookie = (&auth.Profile{Cookie: display.Douyin.Cookie}).Masked().Cookie
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))
	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (DYCRAWLER_*)")
	if configFile != "" {
		fmt.Fprintf(out, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "3. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(out, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Douyin.Cookie == "" {
		ui.PrintWarning(out, "No cookie configured; a stored profile or DYCRAWLER_COOKIE will be needed for most accounts")
	}
	ui.PrintSuccess(out, "Configuration is valid")
	ui.PrintInfo(out, "Output directory", cfg.Output.BaseDirectory)
	ui.PrintInfo(out, "Concurrent downloads", fmt.Sprint(cfg.Download.ConcurrentDownloads))
	ui.PrintInfo(out, "Max pages", fmt.Sprint(cfg.Crawl.MaxPages))
	ui.PrintInfo(out, "Max retries", fmt.Sprint(cfg.Retry.MaxRetries))
	ui.PrintInfo(out, "Collision policy", cfg.Download.CollisionPolicy)
	ui.PrintInfo(out, "Log level", cfg.Logging.Level)
	return nil
}
