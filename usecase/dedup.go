package usecase

import (
	"strings"

	"content-pipeline/domain/model"
	"content-pipeline/infrastructure/utils"
)

// Exists reports whether a candidate (title, link) duplicates any known post.
// A post matches on equal normalized title, on an affiliate URL equal to the
// normalized link, or on a normalized body that contains the link verbatim.
// Empty candidate fields never match.
func Exists(known []model.Post, title, link string) bool {
	t := utils.Normalize(title)
	l := utils.Normalize(link)
	for _, p := range known {
		if t != "" && utils.Normalize(p.Title) == t {
			return true
		}
		if l != "" && utils.Normalize(p.AffiliateURL) == l {
			return true
		}
		if link != "" && strings.Contains(utils.Normalize(p.Body), link) {
			return true
		}
	}
	return false
}

// PostIndex answers the same question as Exists with keyed lookups for the
// title and link rules. It is built once per run and grows as posts are created.
type PostIndex struct {
	titles          map[string]struct{}
	links           map[string]struct{}
	bodies          []string
	bodyContainment bool
	size            int
}

func NewPostIndex(posts []model.Post, bodyContainment bool) *PostIndex {
	ix := &PostIndex{
		titles:          make(map[string]struct{}, len(posts)),
		links:           make(map[string]struct{}, len(posts)),
		bodyContainment: bodyContainment,
	}
	for _, p := range posts {
		ix.Add(p)
	}
	return ix
}

func (ix *PostIndex) Add(p model.Post) {
	ix.size++
	if t := utils.Normalize(p.Title); t != "" {
		ix.titles[t] = struct{}{}
	}
	if l := utils.Normalize(p.AffiliateURL); l != "" {
		ix.links[l] = struct{}{}
	}
	if ix.bodyContainment {
		if b := utils.Normalize(p.Body); b != "" {
			ix.bodies = append(ix.bodies, b)
		}
	}
}

func (ix *PostIndex) Exists(title, link string) bool {
	if t := utils.Normalize(title); t != "" {
		if _, ok := ix.titles[t]; ok {
			return true
		}
	}
	if l := utils.Normalize(link); l != "" {
		if _, ok := ix.links[l]; ok {
			return true
		}
	}
	if ix.bodyContainment && link != "" {
		for _, b := range ix.bodies {
			if strings.Contains(b, link) {
				return true
			}
		}
	}
	return false
}

// Len is the number of posts added to the index.
func (ix *PostIndex) Len() int {
	return ix.size
}
