package douyin

import (
	"bytes"
	"fmt"
	"strconv"
)

// PostListResponse is one page of the post listing
type PostListResponse struct {
	StatusCode int     `json:"status_code"`
	StatusMsg  string  `json:"status_msg"`
	AwemeList  []Aweme `json:"aweme_list"`
	HasMore    Flag    `json:"has_more"`
	MaxCursor  int64   `json:"max_cursor"`
}

// Aweme is a single post
type Aweme struct {
	AwemeID    string `json:"aweme_id"`
	Desc       string `json:"desc"`
	CreateTime int64  `json:"create_time"`
	Video      Video  `json:"video"`
}

// Video holds the playable addresses of a post
type Video struct {
	PlayAddr PlayAddr `json:"play_addr"`
	Duration int      `json:"duration"`
}

// PlayAddr lists mirror URLs for the same media
type PlayAddr struct {
	URI     string   `json:"uri"`
	URLList []string `json:"url_list"`
}

// PlayURL returns the first usable media URL, or "" if there is none
func (a *Aweme) PlayURL() string {
	for _, u := range a.Video.PlayAddr.URLList {
		if u != "" {
			return u
		}
	}
	return ""
}

// Flag decodes has_more, which the API sends as 0/1 and occasionally as a bool
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	switch string(data) {
	case "true":
		*f = true
		return nil
	case "false", "null", "":
		*f = false
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid has_more value %q", data)
	}
	*f = n != 0
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}
