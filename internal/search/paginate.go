package search

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultPageSize is the number of results (rows or sessions) per page.
const DefaultPageSize = 10

// ParsePage converts the raw "page" query value to a 1-based page number.
// Missing, non-numeric and non-positive values yield 1. Positive values too
// large for an int saturate, so they address a page past the end.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if errors.Is(err, strconv.ErrRange) && page > 0 {
		return math.MaxInt
	}
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Offset returns the zero-based index of the first item on page.
// The result saturates at math.MaxInt instead of overflowing.
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// SliceBounds returns [lo, hi) for page within n items, clamped to [0, n].
func SliceBounds(n, page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	lo := Offset(page, pageSize)
	if lo > n {
		lo = n
	}
	hi := lo + pageSize
	if hi > n || hi < lo {
		hi = n
	}
	return lo, hi
}
