package model

// FeedItem is one entry extracted from a syndication document.
type FeedItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	PubDate string `json:"pubDate"`
}
