// Package listing turns a raw collection into the visible page of a list view:
// filter, then stable sort, then paginate. It is shared by every entity list.
package listing

import (
	"sort"
	"strings"
)

// Direction is a sort direction; the zero value means unsorted.
type Direction string

// Sort directions.
const (
	None Direction = ""
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection normalises user input; anything unrecognised is unsorted.
func ParseDirection(raw string) Direction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc":
		return Asc
	case "desc":
		return Desc
	default:
		return None
	}
}

// Fields exposes the display fields of a row. Values returns every display
// field in column order; Value returns one field by key ("" when unknown).
type Fields[T any] interface {
	Values(row T) []string
	Value(row T, key string) string
}

// Request holds the presentation parameters. PageIndex is zero-based.
type Request struct {
	Query     string
	SortKey   string
	Direction Direction
	PageIndex int
	PageSize  int
}

// Page is the visible result.
type Page[T any] struct {
	Rows      []T
	Total     int
	PageCount int
	PageIndex int
}

// Present runs the pipeline. The input slice is never modified.
func Present[T any](rows []T, fields Fields[T], req Request) Page[T] {
	filtered := Filter(rows, fields, req.Query)
	sorted := Sort(filtered, fields, req.SortKey, req.Direction)
	visible, pageCount, pageIndex := Paginate(sorted, req.PageIndex, req.PageSize)
	return Page[T]{Rows: visible, Total: len(sorted), PageCount: pageCount, PageIndex: pageIndex}
}

// Filter keeps rows whose space-joined display fields contain the trimmed
// query, compared case-insensitively. An empty query keeps everything.
func Filter[T any](rows []T, fields Fields[T], query string) []T {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]T, 0, len(rows))
	if needle == "" {
		return append(out, rows...)
	}
	for _, row := range rows {
		haystack := strings.ToLower(strings.Join(fields.Values(row), " "))
		if strings.Contains(haystack, needle) {
			out = append(out, row)
		}
	}
	return out
}

// Sort orders rows by the key field as case-insensitive strings. Ties keep
// their input order; Desc flips the comparison, not the result.
func Sort[T any](rows []T, fields Fields[T], key string, dir Direction) []T {
	out := append(make([]T, 0, len(rows)), rows...)
	if dir == None || key == "" {
		return out
	}
	keys := make([]string, len(out))
	for i, row := range out {
		keys[i] = strings.ToLower(fields.Value(row, key))
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if dir == Desc {
			return ka > kb
		}
		return ka < kb
	})
	sorted := make([]T, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// Paginate slices one page. pageCount is at least 1 and an out-of-range
// pageIndex is clamped to the last page.
func Paginate[T any](rows []T, pageIndex, pageSize int) ([]T, int, int) {
	if pageSize <= 0 {
		pageSize = 1
	}
	pageCount := (len(rows) + pageSize - 1) / pageSize
	if pageCount < 1 {
		pageCount = 1
	}
	if pageIndex >= pageCount {
		pageIndex = pageCount - 1
	}
	if pageIndex < 0 {
		pageIndex = 0
	}
	start := pageIndex * pageSize
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return append(make([]T, 0, end-start), rows[start:end]...), pageCount, pageIndex
}
