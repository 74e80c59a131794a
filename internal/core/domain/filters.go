package domain

import (
	"net/url"
	"strconv"
)

// Sort orders accepted by the polls listing endpoint.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortTrending  = "trending"
	SortMostVoted = "most_voted"
	SortMostLiked = "most_liked"
)

// PollFilters selects and pages the poll collection. The zero value lists
// everything with the backend's default sort and page size.
type PollFilters struct {
	CategoryID string
	TagID      string
	Search     string
	SortBy     string
	Page       int
	Limit      int
}

// Values encodes the filters as query parameters, omitting zero fields.
func (f PollFilters) Values() url.Values {
	v := url.Values{}
	if f.CategoryID != "" {
		v.Set("categoryId", f.CategoryID)
	}
	if f.TagID != "" {
		v.Set("tagId", f.TagID)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.SortBy != "" {
		v.Set("sortBy", f.SortBy)
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// Key is the canonical cache key for a filter combination. Encode sorts by
// parameter name, so equal filters always map to the same key.
func (f PollFilters) Key() string {
	return f.Values().Encode()
}
