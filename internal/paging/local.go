package paging

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Schema tells the local pipeline how to read fields of T.
type Schema[T any] struct {
	// Searchable lists the fields matched by the search text.
	Searchable []string
	// Field returns the value of a named field, or nil when absent. Values
	// may be strings, bools, numbers, time.Time or string slices.
	Field func(item T, name string) any
	// Tag is the collation locale. Defaults to language.Und.
	Tag language.Tag
}

// ProcessLocal applies search, filters, sort and slicing to a full list, in
// that order. Totals are computed from the filtered list before slicing.
func ProcessLocal[T any](items []T, p Params, s Schema[T]) Page[T] {
	out := slices.Clone(items)
	if s.Field == nil {
		s.Field = func(T, string) any { return nil }
	}

	if term := cases.Fold().String(strings.TrimSpace(p.Search)); term != "" && len(s.Searchable) > 0 {
		fold := cases.Fold()
		out = slices.DeleteFunc(out, func(item T) bool {
			for _, f := range s.Searchable {
				if strings.Contains(fold.String(text(s.Field(item, f))), term) {
					return false
				}
			}
			return true
		})
	}

	for name, want := range p.Filters {
		want = slices.DeleteFunc(slices.Clone(want), func(v string) bool { return v == "" })
		if len(want) == 0 {
			continue
		}
		out = slices.DeleteFunc(out, func(item T) bool {
			return !matches(s.Field(item, name), want)
		})
	}

	if p.SortBy != "" {
		col := collate.New(s.Tag)
		slices.SortStableFunc(out, func(a, b T) int {
			return compareField(col, s.Field(a, p.SortBy), s.Field(b, p.SortBy), p.SortOrder)
		})
	}

	return slicePage(out, p.Page, p.Limit)
}

func slicePage[T any](items []T, page, limit int) Page[T] {
	if page < 1 {
		page = 1
	}
	total := len(items)
	if limit <= 0 {
		pages := 0
		if total > 0 {
			pages = 1
		}
		return Page[T]{Data: items, Total: total, Page: 1, Limit: limit, TotalPages: pages}
	}
	pages := int(math.Ceil(float64(total) / float64(limit)))
	start := min((page-1)*limit, total)
	end := min(page*limit, total)
	return Page[T]{
		Data:       items[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
		HasMore:    page < pages,
	}
}

// matches reports whether v equals one of want. Slice values match when any
// element does.
func matches(v any, want []string) bool {
	switch x := v.(type) {
	case []string:
		for _, e := range x {
			if slices.Contains(want, e) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range x {
			if slices.Contains(want, text(e)) {
				return true
			}
		}
		return false
	}
	return slices.Contains(want, text(v))
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.RFC3339)
	case []string:
		return strings.Join(x, " ")
	}
	if f, ok := number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func isNil(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case time.Time:
		return x.IsZero()
	}
	return false
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// compareField orders two field values. Missing values sort last in both
// directions.
func compareField(col *collate.Collator, a, b any, order Order) int {
	an, bn := isNil(a), isNil(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	c := compareValues(col, a, b)
	if order == Desc {
		c = -c
	}
	return c
}

func compareValues(col *collate.Collator, a, b any) int {
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return col.CompareString(text(a), text(b))
}

// ErrUnknownShape is returned by DecodeList for bodies that are neither a
// list nor a page object.
var ErrUnknownShape = errors.New("unrecognised list response")

// DecodeList decodes a list endpoint response. A bare array is processed
// locally with p and s; a page object {data,total,...} is returned as is.
func DecodeList[T any](body []byte, p Params, s Schema[T]) (Page[T], error) {
	if !gjson.ValidBytes(body) {
		return Page[T]{}, fmt.Errorf("decode list: invalid json")
	}
	root := gjson.ParseBytes(body)
	switch {
	case root.IsArray():
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return Page[T]{}, fmt.Errorf("decode list: %w", err)
		}
		return ProcessLocal(items, p, s), nil
	case root.IsObject() && root.Get("data").IsArray():
		var page Page[T]
		if err := json.Unmarshal(body, &page); err != nil {
			return Page[T]{}, fmt.Errorf("decode page: %w", err)
		}
		return page, nil
	}
	return Page[T]{}, ErrUnknownShape
}

// MapSchema reads fields from generic JSON objects.
func MapSchema(searchable ...string) Schema[map[string]any] {
	return Schema[map[string]any]{
		Searchable: searchable,
		Field: func(item map[string]any, name string) any {
			return item[name]
		},
	}
}
