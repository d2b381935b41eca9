package policy

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

const (
	reasonKeep     = "designated for keeping"
	reasonDegraded = "could not determine which objects to keep in this month"
)

// bimonthly keeps exactly two dates per calendar month: the first "complete"
// day in 1..14 and the first in 15..31. A month where either half has no
// complete day is degraded and everything in it is skipped, never removed.
type bimonthly struct {
	expect []*regexp.Regexp
	tree   bucketTree
}

func newBimonthly(cfg Config) Engine {
	expect := make([]*regexp.Regexp, len(cfg.Expect))
	copy(expect, cfg.Expect)
	return &bimonthly{expect: expect}
}

// bucketTree is a year -> month -> day mapping that remembers insertion order
// at every level. A day key exists only while its record list is non-empty.
type bucketTree struct {
	years  []int
	byYear map[int]*yearBuckets
}

type yearBuckets struct {
	months  []time.Month
	byMonth map[time.Month]*monthBuckets
}

type monthBuckets struct {
	days  []int
	byDay map[int][]Record
}

func (t *bucketTree) insert(rec Record) {
	y, m, d := rec.When.Year(), rec.When.Month(), rec.When.Day()

	if t.byYear == nil {
		t.byYear = make(map[int]*yearBuckets)
	}
	yb, ok := t.byYear[y]
	if !ok {
		yb = &yearBuckets{byMonth: make(map[time.Month]*monthBuckets)}
		t.byYear[y] = yb
		t.years = append(t.years, y)
	}

	mb, ok := yb.byMonth[m]
	if !ok {
		mb = &monthBuckets{byDay: make(map[int][]Record)}
		yb.byMonth[m] = mb
		yb.months = append(yb.months, m)
	}

	if _, ok := mb.byDay[d]; !ok {
		mb.days = append(mb.days, d)
	}
	mb.byDay[d] = append(mb.byDay[d], rec)
}

func (e *bimonthly) Run(ctx context.Context, in <-chan Record) (<-chan Decision, <-chan Warning, <-chan error) {
	decisions := make(chan Decision, 32)
	warnings := make(chan Warning, 8)
	errc := make(chan error, 1)

	go func() {
		defer close(decisions)
		defer close(warnings)
		defer close(errc)

		for rec := range in {
			if rec.When == nil {
				errc <- fmt.Errorf("found entry not under a particular time bucket: %s", rec.Path)
				return
			}
			e.tree.insert(rec)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}

		for _, y := range e.tree.years {
			yb := e.tree.byYear[y]
			for _, m := range yb.months {
				if !e.decideMonth(ctx, y, m, yb.byMonth[m], decisions, warnings) {
					return
				}
			}
		}
	}()

	return decisions, warnings, errc
}

// decideMonth runs the completeness scan over both halves of the month and
// emits one decision per record in it. Returns false when the context was
// cancelled mid-emission.
func (e *bimonthly) decideMonth(ctx context.Context, year int, month time.Month, mb *monthBuckets, decisions chan<- Decision, warnings chan<- Warning) bool {
	keep1 := e.firstCompleteDay(mb, 1, 14)
	keep2 := e.firstCompleteDay(mb, 15, 31)

	warn := func(code, msg string) bool {
		w := Warning{
			Code:    code,
			Message: fmt.Sprintf("%04d-%02d: %s", year, month, msg),
			Year:    year,
			Month:   month,
		}
		select {
		case warnings <- w:
			return true
		case <-ctx.Done():
			return false
		}
	}

	degraded := false
	if keep1 == 0 {
		degraded = true
		if !warn(WarnMissing, "no valid objects found in days 1-14") {
			return false
		}
	}
	if keep2 == 0 {
		degraded = true
		if !warn(WarnMissing, "no valid objects found after day 15") {
			return false
		}
	}

	if !degraded {
		if keep1 != 1 && !warn(WarnNoDay1, fmt.Sprintf("keeping day %d instead of day 1", keep1)) {
			return false
		}
		if keep2 != 15 && !warn(WarnNoDay2, fmt.Sprintf("keeping day %d instead of day 15", keep2)) {
			return false
		}
	}

	for _, d := range mb.days {
		for _, rec := range mb.byDay[d] {
			var dec Decision
			switch {
			case degraded:
				dec = Decision{Action: ActionSkip, Path: rec.Path, Reason: reasonDegraded}
			case d == keep1 || d == keep2:
				dec = Decision{Action: ActionSkip, Path: rec.Path, Reason: reasonKeep}
			default:
				dec = Decision{Action: ActionRemove, Path: rec.Path}
			}

			select {
			case decisions <- dec:
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}

// firstCompleteDay returns the lowest day in [from, to] whose bucket is
// complete, or 0 when the range has none.
func (e *bimonthly) firstCompleteDay(mb *monthBuckets, from, to int) int {
	for d := from; d <= to; d++ {
		recs, ok := mb.byDay[d]
		if !ok {
			continue
		}
		if e.complete(recs) {
			return d
		}
	}
	return 0
}

// complete reports whether the day's basenames collectively satisfy the
// expected pattern set. Matching is consumable: each basename, in bucket
// order, consumes the first remaining pattern it matches, and the day is
// complete once every pattern has been consumed. With no patterns configured
// any non-empty bucket is complete.
func (e *bimonthly) complete(recs []Record) bool {
	if len(e.expect) == 0 {
		return len(recs) > 0
	}

	remaining := make([]*regexp.Regexp, len(e.expect))
	copy(remaining, e.expect)
	left := len(remaining)

	for _, rec := range recs {
		for i, p := range remaining {
			if p == nil {
				continue
			}
			if p.MatchString(rec.Basename) {
				remaining[i] = nil
				left--
				break
			}
		}
		if left == 0 {
			return true
		}
	}
	return left == 0
}
