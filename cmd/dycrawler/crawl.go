package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dycrawler/pkg/auth"
	"dycrawler/pkg/config"
	"dycrawler/pkg/crawler"
	"dycrawler/pkg/logger"
	"dycrawler/pkg/ui"
	"dycrawler/pkg/ui/tui"
)

var (
	// Crawl command flags
	outputDir   string
	cookie      string
	profileName string
	concurrent  int
	maxPages    int
	maxRetries  int
	collision   string
	useTUI      bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <profile-url>",
	Short: "Download every video of a Douyin account",
	Long: `Walk the post list of a Douyin account page by page and download each
video into the output directory.

The account is identified by the sec_user_id in its profile URL, for example
https://www.douyin.com/user/MS4wLjABAAAA... Press Ctrl+C once to cancel; videos
already saved are kept.

A browser session cookie is usually needed for the listing endpoint. It is
taken from --cookie, DYCRAWLER_COOKIE, the config file, or a profile stored
with 'dycrawler auth login', in that order.`,
	Example: `  # Download into ./downloads
  dycrawler crawl https://www.douyin.com/user/MS4wLjABAAAAxxxx

  # Three parallel downloads into a custom folder with the terminal UI
  dycrawler crawl https://www.douyin.com/user/MS4wLjABAAAAxxxx -o ./videos --concurrent 3 --tui

  # Use a stored cookie profile and keep existing files untouched
  dycrawler crawl https://www.douyin.com/user/MS4wLjABAAAAxxxx --profile work --collision suffix`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: ./downloads)")
	crawlCmd.Flags().StringVar(&cookie, "cookie", "", "Cookie header sent with listing requests")
	crawlCmd.Flags().StringVarP(&profileName, "profile", "p", "", "stored cookie profile to use")
	crawlCmd.Flags().IntVar(&concurrent, "concurrent", 1, "number of parallel downloads (1-5)")
	crawlCmd.Flags().IntVar(&maxPages, "max-pages", 10, "maximum number of listing pages")
	crawlCmd.Flags().IntVar(&maxRetries, "retries", 3, "retries for transient failures")
	crawlCmd.Flags().StringVar(&collision, "collision", config.CollisionSuffix, "existing file policy (suffix, overwrite)")
	crawlCmd.Flags().BoolVar(&useTUI, "tui", false, "use the full-screen terminal UI")
}

// crawlFlags collects the crawl flags the user set explicitly
func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	set := cmd.Flags().Changed
	if set("output") {
		flags["output"] = outputDir
	}
	if set("cookie") {
		flags["cookie"] = auth.NormalizeCookie(cookie)
	}
	if set("concurrent") {
		flags["concurrent"] = concurrent
	}
	if set("max-pages") {
		flags["max-pages"] = maxPages
	}
	if set("retries") {
		flags["retries"] = maxRetries
	}
	if set("collision") {
		flags["collision"] = collision
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	profileURL := args[0]
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configFile, crawlFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Console logs would tear the progress display; keep errors only
	// unless asked otherwise or logging to a file.
	if (useTUI || !verbose) && !cmd.Flags().Changed("log-level") && cfg.Logging.File == "" {
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("dycrawler starting")

	applyStoredCookie(cfg, cmd.Flags().Changed("cookie"), out)

	if !quiet && !useTUI {
		ui.PrintInfo(out, "Profile", profileURL)
		ui.PrintInfo(out, "Output", cfg.Output.BaseDirectory)
	}

	h := crawler.New(cfg, log).Start(profileURL, "")
	log.WithFields(map[string]interface{}{
		"crawl_id": h.ID,
		"profile":  profileURL,
	}).Info("Crawl started")

	var summary crawler.Summary
	if useTUI {
		summary, err = tui.Run(h, out)
	} else {
		summary, err = runPlain(h, out)
	}

	ui.NewNotifier(out, cfg.Notifications).NotifyCrawl(summaryOrNil(summary, err), err)

	if err != nil {
		log.WithError(err).Error("Crawl failed")
		return err
	}
	log.InfoWithFields("Crawl finished", map[string]interface{}{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"cancelled": summary.Cancelled,
		"outcome":   string(summary.Outcome),
	})
	if summary.Failed > 0 {
		if verbose {
			ui.PrintError(cmd.ErrOrStderr(), "Failures", summary.Err())
		}
		return fmt.Errorf("%d of %d downloads failed", summary.Failed, summary.Requested)
	}
	return nil
}

// runPlain renders events with the progress bar and maps the first
// SIGINT/SIGTERM to a cancel. A second signal exits at once.
func runPlain(h *crawler.Handle, out io.Writer) (crawler.Summary, error) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case <-sigs:
		case <-h.Done():
			return
		}
		ui.PrintWarning(os.Stderr, "\ncancelling, press Ctrl+C again to exit now")
		h.Cancel()
		select {
		case <-sigs:
			os.Exit(130)
		case <-h.Done():
		}
	}()

	var w io.Writer = out
	if quiet {
		w = io.Discard
	}
	ui.NewProgressDisplay(w, verbose).Consume(h.Events())
	return h.Wait()
}

// applyStoredCookie fills the request cookie from the credential store.
// An explicit --cookie always wins; --profile overrides a cookie from the
// config file or environment.
func applyStoredCookie(cfg *config.Config, cookieFlag bool, out io.Writer) {
	if cookieFlag || (cfg.Douyin.Cookie != "" && profileName == "") {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Warn("Credential store unavailable")
		return
	}

	var profile *auth.Profile
	if profileName != "" {
		profile, err = manager.Retrieve(profileName)
	} else {
		profile, err = manager.RetrieveDefault()
	}
	if err != nil {
		if profileName != "" {
			ui.PrintWarning(out, fmt.Sprintf("cookie profile %q not found; run 'dycrawler auth list'", profileName))
		} else {
			logger.Debug("No stored cookie profile")
		}
		return
	}

	cfg.Douyin.Cookie = profile.Cookie
	if profile.UserAgent != "" {
		cfg.Douyin.UserAgent = profile.UserAgent
	}
	logger.WithField("profile", profile.Name).Info("Using stored cookie")
}

func summaryOrNil(s crawler.Summary, err error) *crawler.Summary {
	if err != nil {
		return nil
	}
	return &s
}
