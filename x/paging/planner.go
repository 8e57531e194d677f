// Package paging turns raw query parameters into a page window for mew listings
package paging

import (
	"math"
	"strings"

	"github.com/meowerlab/meower/core"
)

const (
	DefaultSkip  = 0
	DefaultLimit = 5
	MinLimit     = 1
	MaxLimit     = 50
)

// Plan is the window a paginated read fetches
type Plan struct {
	Skip  int64
	Limit int64
	Sort  core.SortDirection
}

// NewPlan parses and clamps the raw skip, limit and sort parameters.
// Any text is acceptable input; unparsable values fall back to the defaults.
func NewPlan(rawSkip, rawLimit, rawSort string) Plan {
	skip, ok := parseInt(rawSkip)
	if !ok {
		skip = DefaultSkip
	}
	if skip < 0 {
		skip = 0
	}

	limit, ok := parseInt(rawLimit)
	if !ok {
		limit = DefaultLimit
	}
	if limit < MinLimit {
		limit = MinLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	sort := core.SortDescending
	if rawSort == "asc" {
		sort = core.SortAscending
	}

	return Plan{Skip: skip, Limit: limit, Sort: sort}
}

// Meta reports the page metadata for a collection of total records.
// has_more compares raw arithmetic, not the number of rows actually returned.
func (p Plan) Meta(total int64) core.PageMeta {
	return core.PageMeta{
		Total:   total,
		Skip:    p.Skip,
		Limit:   p.Limit,
		HasMore: hasMore(total, p.Skip, p.Limit),
	}
}

// hasMore evaluates total-(skip+limit) > 0 without overflowing on huge skips
func hasMore(total, skip, limit int64) bool {
	return total-skip > limit
}

// parseInt reads a leading base-10 integer the way a lenient query parser does:
// leading whitespace and a sign are accepted and anything after the digits is ignored.
// Values beyond the int64 range saturate.
func parseInt(raw string) (int64, bool) {
	s := strings.TrimLeft(raw, " \t\n\r\v\f")
	if s == "" {
		return 0, false
	}

	negative := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		negative = true
		s = s[1:]
	}

	var n int64
	digits := 0
	saturated := false
	for ; digits < len(s); digits++ {
		c := s[digits]
		if c < '0' || c > '9' {
			break
		}
		if saturated {
			continue
		}
		d := int64(c - '0')
		if n > (math.MaxInt64-d)/10 {
			saturated = true
			n = math.MaxInt64
			continue
		}
		n = n*10 + d
	}
	if digits == 0 {
		return 0, false
	}

	if negative {
		return -n, true
	}
	return n, true
}
