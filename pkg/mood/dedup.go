package mood

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/elonfeng/moodradar/pkg/source"
)

const (
	DefaultMaxPosts = 200

	// Posts this short or shorter are treated as noise.
	minTextRunes = 30
)

// Deduplicate drops short posts, keeps the first post for each distinct
// trimmed text, orders survivors by likes plus a small length bonus and caps
// the result at maxPosts.
func Deduplicate(posts []source.Post, maxPosts int) []source.Post {
	if maxPosts <= 0 {
		maxPosts = DefaultMaxPosts
	}

	seen := make(map[string]struct{}, len(posts))
	unique := make([]source.Post, 0, len(posts))
	for _, p := range posts {
		text := strings.TrimSpace(p.Text)
		if utf8.RuneCountInString(text) <= minTextRunes {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		p.Text = text
		unique = append(unique, p)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return engagementKey(unique[i]) > engagementKey(unique[j])
	})

	if len(unique) > maxPosts {
		unique = unique[:maxPosts]
	}
	return unique
}

func engagementKey(p source.Post) float64 {
	return float64(p.Likes) + float64(utf8.RuneCountInString(p.Text))/100
}
