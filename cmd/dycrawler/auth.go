package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dycrawler/pkg/auth"
	"dycrawler/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Douyin cookies",
	Long: `Manage the browser session cookies sent with listing requests.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - DYCRAWLER_COOKIE environment variable (read only)

Never share your cookie or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a cookie profile",
	Long: `Store a Douyin Cookie header under a profile name. Without a name the
profile is called "default" and is used automatically by 'dycrawler crawl'.`,
	Example: `  # Interactive login into the default profile
  dycrawler auth login

  # Store a second profile
  dycrawler auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored cookie profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cookie profiles",
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status [profile]",
	Short: "Show which cookie a crawl would use",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(statusCmd)
}

func profileArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultProfile
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())
	name := profileArg(args)

	auth.ShowCookieGuide(out)
	fmt.Fprintln(out)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Fprintf(out, "Profile '%s' already exists. Replace it? (y/N): ", name)
		if !confirm(reader) {
			return nil
		}
	}

	var cookieValue string
	for {
		fmt.Fprint(out, "Cookie (input hidden, 'help' for instructions): ")
		raw, err := readSecret(reader, out)
		if err != nil {
			return fmt.Errorf("failed to read cookie: %w", err)
		}
		if strings.EqualFold(strings.TrimSpace(raw), "help") {
			auth.ShowQuickGuide(out)
			continue
		}
		cookieValue = auth.NormalizeCookie(raw)
		if !strings.Contains(cookieValue, "=") {
			ui.PrintWarning(out, "That does not look like a Cookie header (expected name=value pairs).")
			fmt.Fprint(out, "Try again? (Y/n): ")
			if declined(reader) {
				return errors.New("no cookie stored")
			}
			continue
		}
		break
	}

	fmt.Fprint(out, "User agent (press Enter to keep the configured one): ")
	userAgent, _ := reader.ReadString('\n')

	profile := &auth.Profile{
		Name:      name,
		Cookie:    cookieValue,
		UserAgent: strings.TrimSpace(userAgent),
	}
	if err := manager.Store(profile); err != nil {
		return fmt.Errorf("failed to store cookie: %w", err)
	}

	masked := profile.Masked()
	ui.PrintSuccess(out, "Cookie profile saved: "+name)
	ui.PrintInfo(out, "Cookie", masked.Cookie)
	fmt.Fprintln(out, "\nRun a crawl with:")
	if name == auth.DefaultProfile {
		fmt.Fprintln(out, "  dycrawler crawl <profile-url>")
	} else {
		fmt.Fprintf(out, "  dycrawler crawl <profile-url> --profile %s\n", name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	out := cmd.OutOrStdout()
	name := profileArg(args)
	if len(args) == 0 {
		fmt.Fprintf(out, "Remove profile '%s'? (y/N): ", name)
		if !confirm(bufio.NewReader(cmd.InOrStdin())) {
			return nil
		}
	}

	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove profile %s: %w", name, err)
	}
	ui.PrintSuccess(out, "Profile removed: "+name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profiles, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		ui.PrintInfo(out, "No stored profiles", "use 'dycrawler auth login' to add one")
		return nil
	}

	for i, p := range profiles {
		m := p.Masked()
		fmt.Fprintf(out, "%d. %s\n", i+1, m.Name)
		fmt.Fprintf(out, "   Cookie: %s\n", m.Cookie)
		if m.UserAgent != "" {
			fmt.Fprintf(out, "   User Agent: %s\n", m.UserAgent)
		}
		if !m.LastModified.IsZero() {
			fmt.Fprintf(out, "   Last Modified: %s\n", m.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if v := os.Getenv("DYCRAWLER_COOKIE"); v != "" && len(args) == 0 {
		ui.PrintInfo(out, "Source", "DYCRAWLER_COOKIE")
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var profile *auth.Profile
	if len(args) > 0 {
		profile, err = manager.Retrieve(profileArg(args))
	} else {
		profile, err = manager.RetrieveDefault()
	}
	if err != nil {
		ui.PrintWarning(out, "No cookie stored; listing requests will be sent without one.")
		return nil
	}

	m := profile.Masked()
	ui.PrintInfo(out, "Profile", m.Name)
	ui.PrintInfo(out, "Cookie", m.Cookie)
	if !m.LastModified.IsZero() {
		ui.PrintInfo(out, "Stored", m.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func confirm(r *bufio.Reader) bool {
	input, _ := r.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

func declined(r *bufio.Reader) bool {
	input, _ := r.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(input)) == "n"
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(r *bufio.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err == nil {
			return string(secret), nil
		}
	}

	input, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
