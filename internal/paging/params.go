// Package paging owns list query parameters and the client-side
// search/filter/sort/slice pipeline used when the backend returns a full list.
package paging

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

const DefaultSortBy = "createdAt"

// Params are the parameters of one list request.
type Params struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder Order
	Filters   map[string][]string
}

// DefaultParams returns page 1 sorted by createdAt descending.
func DefaultParams(limit int) Params {
	return Params{
		Page:      1,
		Limit:     limit,
		SortBy:    DefaultSortBy,
		SortOrder: Desc,
	}
}

// Clone returns a copy that shares no filter storage with p.
func (p Params) Clone() Params {
	c := p
	if p.Filters != nil {
		c.Filters = make(map[string][]string, len(p.Filters))
		for k, v := range p.Filters {
			c.Filters[k] = slices.Clone(v)
		}
	}
	return c
}

// Values encodes p as list endpoint query parameters. Filters become
// filters[<name>] with one value per entry.
func (p Params) Values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
		q.Set("sortOrder", string(p.SortOrder))
	}
	for _, k := range slices.Sorted(maps.Keys(p.Filters)) {
		for _, v := range p.Filters[k] {
			if v != "" {
				q.Add("filters["+k+"]", v)
			}
		}
	}
	return q
}

// Page is one page of results.
type Page[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}
