package domain

import "strings"

// Default paging values applied by Filter.Normalize
const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// SortBy orders list and search results
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortViews     SortBy = "views"
	SortRecency   SortBy = "recency"
)

// Valid reports whether s is one of the recognized orderings
func (s SortBy) Valid() bool {
	switch s {
	case SortRelevance, SortViews, SortRecency:
		return true
	}
	return false
}

// Filter selects a page of videos
type Filter struct {
	Category string // Empty = unfiltered
	Page     int    // 1-based
	Limit    int    // Page size
	Search   string
	SortBy   SortBy
}

// Normalize returns a copy with defaults applied and out-of-range values fixed
func (f Filter) Normalize() Filter {
	f.Category = strings.TrimSpace(f.Category)
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if !f.SortBy.Valid() {
		f.SortBy = SortRelevance
	}
	return f
}

// Offset returns the zero-based index of the first item on the page
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}
