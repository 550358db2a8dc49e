package feed

import (
	"encoding/json"
	"iter"
	"strings"

	"content-pipeline/domain/model"
)

// ParseJSONItems reads items from an API source: either a JSON array of
// objects or an object with an "items" array. Anything else yields nothing.
func ParseJSONItems(body string) iter.Seq[model.FeedItem] {
	return func(yield func(model.FeedItem) bool) {
		for _, obj := range decodeObjects(body) {
			item := model.FeedItem{
				Title:   clean(firstString(obj, "title")),
				Link:    clean(firstString(obj, "link", "url")),
				PubDate: clean(firstString(obj, "pubDate", "published_at")),
			}
			if item.Title == "" && item.Link == "" {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

func decodeObjects(body string) []map[string]interface{} {
	body = strings.TrimSpace(body)
	var list []map[string]interface{}
	if err := json.Unmarshal([]byte(body), &list); err == nil {
		return list
	}
	var wrapped struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err == nil {
		return wrapped.Items
	}
	return nil
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
