// Package douyin is a client for the Douyin web post listing and its media CDN.
//
// All requests of one crawl share a single pooled http.Client. Listing calls
// are bounded by the API timeout per attempt; media downloads must receive
// headers, and then make read progress, within the media timeout. HTTP 429,
// 500, 502, 503, 504 and connection failures are retried with exponential
// backoff; any other failure is returned immediately as a typed error from
// dycrawler/pkg/errors.
//
//	client := douyin.NewClientFromConfig(cfg, log)
//	defer client.Close()
//
//	id, err := douyin.ExtractSecUserID("https://www.douyin.com/user/MS4wLjABAAAA...")
//	page, err := client.FetchPosts(ctx, id, 0, douyin.DefaultPageSize)
//	for _, aweme := range page.AwemeList {
//	    stream, err := client.OpenMedia(ctx, aweme.PlayURL())
//	    ...
//	}
package douyin
