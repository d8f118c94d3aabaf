package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/reel/internal/domain"
	sahilm "github.com/sahilm/fuzzy"
)

// ContainsFold reports whether title contains query, ignoring case.
// This is the membership rule for catalog search.
func ContainsFold(title, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(query))
}

// Rank orders videos by how closely their titles match query (best first).
// Ties keep the input order. Videos whose titles do not match at all are
// placed last in input order.
func Rank(query string, videos []domain.Video) []domain.Video {
	if strings.TrimSpace(query) == "" || len(videos) < 2 {
		return videos
	}

	titles := make([]string, len(videos))
	for i, v := range videos {
		titles[i] = v.Title
	}

	ranks := fuzzy.RankFindFold(query, titles)
	sort.Stable(ranks)

	ranked := make([]domain.Video, 0, len(videos))
	seen := make([]bool, len(videos))
	for _, r := range ranks {
		if seen[r.OriginalIndex] {
			continue
		}
		seen[r.OriginalIndex] = true
		ranked = append(ranked, videos[r.OriginalIndex])
	}
	for i, v := range videos {
		if !seen[i] {
			ranked = append(ranked, v)
		}
	}
	return ranked
}

// FilterResult is a video that matched an in-view filter
type FilterResult struct {
	Video          domain.Video
	Index          int   // Position in the filtered slice
	MatchedIndexes []int // Character positions that matched (for highlighting)
	Score          int
}

// titleIndex implements sahilm/fuzzy.Source over lowercase titles
type titleIndex struct {
	lowerTitles []string
}

func (idx titleIndex) String(i int) string { return idx.lowerTitles[i] }
func (idx titleIndex) Len() int            { return len(idx.lowerTitles) }

// Filter narrows a held list to titles fuzzily matching query.
// An empty query returns every video in order.
func Filter(query string, videos []domain.Video) []FilterResult {
	query = strings.TrimSpace(query)
	if query == "" {
		results := make([]FilterResult, len(videos))
		for i, v := range videos {
			results[i] = FilterResult{Video: v, Index: i}
		}
		return results
	}

	idx := titleIndex{lowerTitles: make([]string, len(videos))}
	for i, v := range videos {
		idx.lowerTitles[i] = strings.ToLower(v.Title)
	}

	matches := sahilm.FindFrom(strings.ToLower(query), idx)
	results := make([]FilterResult, len(matches))
	for i, m := range matches {
		results[i] = FilterResult{
			Video:          videos[m.Index],
			Index:          m.Index,
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}
