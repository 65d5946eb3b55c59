package douyin

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	// BaseURL is the base URL for the Douyin web API
	BaseURL = "https://www.douyin.com"

	// PostListEndpoint lists the posts of one account, newest first
	PostListEndpoint = "/aweme/v1/web/aweme/post/"

	// DefaultPageSize is the number of posts requested per page
	DefaultPageSize = 18
)

// ErrNotFound is returned when a URL carries no account identifier
var ErrNotFound = errors.New("no sec_user_id found in URL")

// accountPatterns are tried in order; the first non-empty capture wins
var accountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sec_user_id=([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`user/([A-Za-z0-9_-]+)`),
}

// ExtractSecUserID returns the account identifier carried by a profile URL,
// either as a sec_user_id query parameter or as a /user/<id> path segment.
func ExtractSecUserID(rawURL string) (string, error) {
	for _, re := range accountPatterns {
		if m := re.FindStringSubmatch(rawURL); len(m) > 1 && m[1] != "" {
			return m[1], nil
		}
	}
	return "", ErrNotFound
}

// PostListURL builds the listing URL for one page
func PostListURL(baseURL, secUserID string, cursor int64, count int) string {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if count <= 0 {
		count = DefaultPageSize
	}

	params := url.Values{}
	params.Set("device_platform", "webapp")
	params.Set("aid", "6383")
	params.Set("channel", "channel_pc_web")
	params.Set("sec_user_id", secUserID)
	params.Set("max_cursor", strconv.FormatInt(cursor, 10))
	params.Set("count", strconv.Itoa(count))
	params.Set("publish_video_strategy_type", "2")

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), PostListEndpoint, params.Encode())
}

// ProfileURL returns the public profile page for an account
func ProfileURL(secUserID string) string {
	if secUserID == "" {
		return ""
	}
	return fmt.Sprintf("%s/user/%s", BaseURL, secUserID)
}
