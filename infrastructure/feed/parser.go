package feed

import (
	"iter"
	"regexp"
	"strings"

	"content-pipeline/domain/model"
)

var (
	itemPattern    = regexp.MustCompile(`(?is)<item\b[^>]*>(.*?)</item\s*>`)
	titlePattern   = tagPattern("title")
	linkPattern    = tagPattern("link")
	pubDatePattern = tagPattern("pubDate")
	cdataPattern   = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// tagPattern matches <name ...>text</name> but not a self-closing <name .../>.
func tagPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<` + name + `(?:\s[^>]*[^/>])?\s*>(.*?)</` + name + `\s*>`)
}

// Parse extracts items from RSS-like markup. It is deliberately lenient: it
// never fails, skips blocks carrying neither a title nor a link, and scans
// one block per yielded item. Ranging over the result again restarts the scan.
func Parse(markup string) iter.Seq[model.FeedItem] {
	return func(yield func(model.FeedItem) bool) {
		rest := markup
		for {
			loc := itemPattern.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			block := rest[loc[2]:loc[3]]
			rest = rest[loc[1]:]

			item := model.FeedItem{
				Title:   firstTag(titlePattern, block),
				Link:    firstTag(linkPattern, block),
				PubDate: firstTag(pubDatePattern, block),
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

func firstTag(p *regexp.Regexp, block string) string {
	m := p.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return clean(m[1])
}

func clean(s string) string {
	s = cdataPattern.ReplaceAllString(s, "${1}")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
