package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieGuide prints how to copy the Cookie header from a browser session
func ShowCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "DOUYIN COOKIE GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Listing requests are often rejected without a browser session cookie.")
	fmt.Fprintln(w, "The cookie is sent as a static header and is never refreshed.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://www.douyin.com in a desktop browser and sign in.")
	fmt.Fprintln(w, "2. Open Developer Tools (F12) and switch to the Network tab.")
	fmt.Fprintln(w, "3. Reload and select any request to www.douyin.com/aweme/.")
	fmt.Fprintln(w, "4. Under Request Headers, copy the full value of 'Cookie:'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tips:")
	fmt.Fprintln(w, "  - Paste the whole value, without the 'Cookie:' prefix.")
	fmt.Fprintln(w, "  - Cookies expire; run 'dycrawler auth login' again when listing fails with 403.")
	fmt.Fprintln(w, "  - The cookie grants access to your account. Do not share it.")
	fmt.Fprintln(w, rule)
}

// ShowQuickGuide prints the one-line version of ShowCookieGuide
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Network > reload > any www.douyin.com/aweme/ request > Headers > Cookie")
	fmt.Fprintln(w, "Type 'help' for detailed instructions")
}

// NormalizeCookie trims whitespace and an accidentally pasted "Cookie:" prefix
func NormalizeCookie(raw string) string {
	c := strings.TrimSpace(raw)
	if len(c) >= 7 && strings.EqualFold(c[:7], "cookie:") {
		c = strings.TrimSpace(c[7:])
	}
	return strings.Trim(c, `"'`)
}
