// Package input parses operator-typed row lists and address lists.
package input

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidRow   = errors.New("invalid_row")
	ErrEmptyInput   = errors.New("empty_input")
	ErrRangeTooWide = errors.New("row_range_too_wide")
)

// MaxRangeRows caps a single "a-b" span.
const MaxRangeRows = 5000

// Bounds restricts accepted row numbers. A zero Max means unbounded.
type Bounds struct {
	Min int
	Max int
}

func (b Bounds) check(n int) error {
	if n < b.Min || (b.Max > 0 && n > b.Max) {
		if b.Max > 0 {
			return fmt.Errorf("%w: %d not in %d..%d", ErrInvalidRow, n, b.Min, b.Max)
		}
		return fmt.Errorf("%w: %d below %d", ErrInvalidRow, n, b.Min)
	}
	return nil
}

// ParseRowNumbers reads comma separated rows and inclusive ranges ("2-5, 7").
// The result is deduplicated and sorted ascending.
func ParseRowNumbers(text string, bounds Bounds) ([]int, error) {
	text = strings.Join(strings.Fields(text), "")
	if text == "" {
		return nil, ErrEmptyInput
	}

	seen := make(map[int]struct{})
	for _, part := range strings.Split(text, ",") {
		if part == "" {
			continue
		}
		lo, hi, err := parseSpan(part)
		if err != nil {
			return nil, err
		}
		if hi-lo >= MaxRangeRows {
			return nil, fmt.Errorf("%w: %s", ErrRangeTooWide, part)
		}
		for n := lo; n <= hi; n++ {
			if err := bounds.check(n); err != nil {
				return nil, err
			}
			seen[n] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func parseSpan(part string) (int, int, error) {
	start, end, isRange := strings.Cut(part, "-")
	lo, err := strconv.Atoi(start)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRow, part)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(end)
	if err != nil || hi < lo {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRow, part)
	}
	return lo, hi, nil
}

var (
	addressSeparator = regexp.MustCompile(`[^a-zA-Z0-9.+_@-]+|,`)
	addressPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ParseEmailAddresses pulls the valid addresses out of free text, keeping first-seen order.
func ParseEmailAddresses(text string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, candidate := range addressSeparator.Split(text, -1) {
		if candidate == "" || !addressPattern.MatchString(candidate) {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
