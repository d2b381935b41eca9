package policy

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"
)

func recordOn(t *testing.T, year int, month time.Month, day int, basename string) Record {
	t.Helper()
	when := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Record{
		Path:     fmt.Sprintf("app/%04d-%02d-%02d/%s", year, month, day, basename),
		Kind:     "object",
		Basename: basename,
		When:     &when,
	}
}

// runEngine feeds records into a fresh engine and drains every channel.
func runEngine(t *testing.T, cfg Config, recs []Record) (map[string]Decision, []Warning, error) {
	t.Helper()

	eng, err := New("bimonthly", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := make(chan Record)
	go func() {
		for _, r := range recs {
			in <- r
		}
		close(in)
	}()

	decisions, warnings, errc := eng.Run(context.Background(), in)

	got := make(map[string]Decision)
	var warns []Warning

	for decisions != nil || warnings != nil {
		select {
		case d, ok := <-decisions:
			if !ok {
				decisions = nil
				continue
			}
			if _, dup := got[d.Path]; dup {
				t.Fatalf("duplicate decision for %s", d.Path)
			}
			got[d.Path] = d
		case w, ok := <-warnings:
			if !ok {
				warnings = nil
				continue
			}
			warns = append(warns, w)
		}
	}

	return got, warns, <-errc
}

func warningCodes(warns []Warning) map[string]int {
	out := make(map[string]int)
	for _, w := range warns {
		out[w.Code]++
	}
	return out
}

func TestBimonthlyKeepsFirstAndFifteenth(t *testing.T) {
	recs := []Record{
		recordOn(t, 2020, time.June, 1, "db.dump.gz"),
		recordOn(t, 2020, time.June, 3, "db.dump.gz"),
		recordOn(t, 2020, time.June, 15, "db.dump.gz"),
		recordOn(t, 2020, time.June, 20, "db.dump.gz"),
	}

	got, warns, err := runEngine(t, Config{}, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("expected %d decisions, got %d", len(recs), len(got))
	}
	if len(warns) != 0 {
		t.Fatalf("expected no warnings, got %v", warns)
	}

	for _, r := range recs {
		d := got[r.Path]
		switch r.When.Day() {
		case 1, 15:
			if d.Action != ActionSkip || d.Reason != reasonKeep {
				t.Fatalf("day %d: expected keep skip, got %+v", r.When.Day(), d)
			}
		default:
			if d.Action != ActionRemove {
				t.Fatalf("day %d: expected remove, got %+v", r.When.Day(), d)
			}
			if d.Reason != "" {
				t.Fatalf("remove decision must not carry a reason: %+v", d)
			}
		}
	}
}

func TestBimonthlyWarnsWhenKeepDaysDeviate(t *testing.T) {
	recs := []Record{
		recordOn(t, 2020, time.July, 5, "db.dump.gz"),
		recordOn(t, 2020, time.July, 20, "db.dump.gz"),
	}

	got, warns, err := runEngine(t, Config{}, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, r := range recs {
		if d := got[r.Path]; d.Action != ActionSkip || d.Reason != reasonKeep {
			t.Fatalf("expected both days kept, got %+v", d)
		}
	}

	codes := warningCodes(warns)
	if codes[WarnNoDay1] != 1 {
		t.Fatalf("expected one %s warning, got %v", WarnNoDay1, warns)
	}
	if codes[WarnNoDay2] != 1 {
		t.Fatalf("expected one %s warning, got %v", WarnNoDay2, warns)
	}
	if codes[WarnMissing] != 0 {
		t.Fatalf("unexpected %s warning: %v", WarnMissing, warns)
	}
}

func TestBimonthlyDegradesWithoutFirstHalf(t *testing.T) {
	recs := []Record{
		recordOn(t, 2020, time.August, 20, "db.dump.gz"),
		recordOn(t, 2020, time.August, 25, "db.dump.gz"),
	}

	got, warns, err := runEngine(t, Config{}, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, r := range recs {
		d := got[r.Path]
		if d.Action != ActionSkip || d.Reason != reasonDegraded {
			t.Fatalf("degraded month must skip everything, got %+v", d)
		}
	}

	codes := warningCodes(warns)
	if codes[WarnMissing] != 1 {
		t.Fatalf("expected one %s warning, got %v", WarnMissing, warns)
	}
	if codes[WarnNoDay1] != 0 || codes[WarnNoDay2] != 0 {
		t.Fatalf("degraded month must not emit deviation warnings: %v", warns)
	}
}

func TestBimonthlyDegradesWithoutEitherHalf(t *testing.T) {
	recs := []Record{
		recordOn(t, 2021, time.January, 7, "db.dump.gz"),
	}

	got, warns, err := runEngine(t, Config{}, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := got[recs[0].Path]; d.Action != ActionSkip || d.Reason != reasonDegraded {
		t.Fatalf("expected skip for month with empty second half, got %+v", d)
	}
	if codes := warningCodes(warns); codes[WarnMissing] != 1 {
		t.Fatalf("expected one %s warning, got %v", WarnMissing, warns)
	}
}

func TestBimonthlyMonthsAreIndependent(t *testing.T) {
	recs := []Record{
		recordOn(t, 2020, time.June, 1, "db.dump.gz"),
		recordOn(t, 2020, time.June, 15, "db.dump.gz"),
		recordOn(t, 2020, time.June, 22, "db.dump.gz"),
		recordOn(t, 2020, time.July, 20, "db.dump.gz"), // degraded
		recordOn(t, 2021, time.June, 2, "db.dump.gz"),
		recordOn(t, 2021, time.June, 16, "db.dump.gz"),
	}

	got, _, err := runEngine(t, Config{}, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("expected %d decisions, got %d", len(recs), len(got))
	}

	if d := got[recs[2].Path]; d.Action != ActionRemove {
		t.Fatalf("2020-06-22 should be removed, got %+v", d)
	}
	if d := got[recs[3].Path]; d.Action != ActionSkip || d.Reason != reasonDegraded {
		t.Fatalf("2020-07 must degrade independently, got %+v", d)
	}
	if d := got[recs[4].Path]; d.Action != ActionSkip || d.Reason != reasonKeep {
		t.Fatalf("2021-06-02 should be kept, got %+v", d)
	}
}

func TestBimonthlyNilTimestampIsFatal(t *testing.T) {
	recs := []Record{
		{Path: "app/latest/db.dump.gz", Kind: "object", Basename: "db.dump.gz"},
	}

	_, _, err := runEngine(t, Config{}, recs)
	if err == nil {
		t.Fatalf("expected fatal error for record without a time bucket")
	}
	want := "found entry not under a particular time bucket: app/latest/db.dump.gz"
	if err.Error() != want {
		t.Fatalf("unexpected error: got %q want %q", err, want)
	}
}

func TestCompletenessRequiresAllPatterns(t *testing.T) {
	cfg := Config{Expect: []*regexp.Regexp{
		regexp.MustCompile(`db\.dump\.gz`),
		regexp.MustCompile(`files\.tar\.gz`),
	}}

	recs := []Record{
		// Day 1 has only one of the two expected files; day 3 has both.
		recordOn(t, 2020, time.June, 1, "db.dump.gz"),
		recordOn(t, 2020, time.June, 3, "db.dump.gz"),
		recordOn(t, 2020, time.June, 3, "files.tar.gz"),
		recordOn(t, 2020, time.June, 15, "db.dump.gz"),
		recordOn(t, 2020, time.June, 15, "files.tar.gz"),
	}

	got, warns, err := runEngine(t, cfg, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d := got[recs[0].Path]; d.Action != ActionRemove {
		t.Fatalf("incomplete day 1 should be removed, got %+v", d)
	}
	if d := got[recs[1].Path]; d.Action != ActionSkip || d.Reason != reasonKeep {
		t.Fatalf("day 3 should be the first keep day, got %+v", d)
	}
	if codes := warningCodes(warns); codes[WarnNoDay1] != 1 {
		t.Fatalf("expected %s since day 3 was kept instead of day 1: %v", WarnNoDay1, warns)
	}
}

func TestCompletenessMatchingIsConsumable(t *testing.T) {
	twice := Config{Expect: []*regexp.Regexp{
		regexp.MustCompile(`a\.log`),
		regexp.MustCompile(`a\.log`),
	}}

	eng := newBimonthly(twice).(*bimonthly)

	both := []Record{
		{Basename: "a.log"},
		{Basename: "a.log"},
	}
	if !eng.complete(both) {
		t.Fatalf("two basenames should satisfy two identical patterns")
	}

	one := []Record{{Basename: "a.log"}}
	if eng.complete(one) {
		t.Fatalf("one basename must not satisfy two patterns")
	}
}

func TestCompletenessEmptyExpectSet(t *testing.T) {
	eng := newBimonthly(Config{}).(*bimonthly)

	if !eng.complete([]Record{{Basename: "anything"}}) {
		t.Fatalf("non-empty bucket should be complete without patterns")
	}
	if eng.complete(nil) {
		t.Fatalf("empty bucket is never complete")
	}
}

func TestBimonthlyTotality(t *testing.T) {
	var recs []Record
	for month := time.January; month <= time.December; month++ {
		for day := 1; day <= 28; day += 3 {
			recs = append(recs, recordOn(t, 2022, month, day, "db.dump.gz"))
			recs = append(recs, recordOn(t, 2022, month, day, "files.tar.gz"))
		}
	}

	got, _, err := runEngine(t, Config{}, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("totality violated: %d records in, %d decisions out", len(recs), len(got))
	}
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	_, err := New("weekly", Config{})
	if err == nil {
		t.Fatalf("expected error for unknown policy")
	}
	if err.Error() != "unsupported policy: weekly" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewIsCaseInsensitive(t *testing.T) {
	if _, err := New("  BiMonthly ", Config{}); err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
	if !Supported("BIMONTHLY") {
		t.Fatalf("Supported should be case-insensitive")
	}
}
