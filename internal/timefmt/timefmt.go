package timefmt

import (
	"strings"
	"time"
)

// DefaultLayouts are tried when the config does not name any time_formats.
var DefaultLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
}

// Formats extracts calendar dates from object paths. All methods are pure
// functions of the path string.
type Formats struct {
	layouts []string
}

func New(layouts []string) *Formats {
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	copied := make([]string, len(layouts))
	copy(copied, layouts)
	return &Formats{layouts: copied}
}

// ExtractBeginTime scans the slash-separated path segments left to right and
// returns the first date any configured layout recognizes. Layouts containing
// slashes consume that many adjacent segments (e.g. "2006/01/02" matches a
// year/month/day directory triple).
func (f *Formats) ExtractBeginTime(p string) (time.Time, bool) {
	segments := strings.Split(strings.Trim(p, "/"), "/")

	for i := range segments {
		for _, layout := range f.layouts {
			span := strings.Count(layout, "/") + 1
			if i+span > len(segments) {
				continue
			}

			candidate := strings.Join(segments[i:i+span], "/")
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}

			// Timestamps embedded at the start of a name, like
			// 20260203_siteA.tar.gz.
			if span == 1 && len(candidate) > len(layout) {
				if t, err := time.Parse(layout, candidate[:len(layout)]); err == nil {
					return t, true
				}
			}
		}
	}

	return time.Time{}, false
}

// RangeContains reports whether the date derived from p falls inside the
// inclusive [start, end] window. A nil bound is open. Paths with no derivable
// date are kept: the policy stage is the one that decides whether that is
// fatal, so the filter must not hide them.
func (f *Formats) RangeContains(start, end *time.Time, p string) bool {
	t, ok := f.ExtractBeginTime(p)
	if !ok {
		return true
	}
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}
