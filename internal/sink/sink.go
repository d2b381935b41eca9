package sink

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dev-tams/prunekit/internal/policy"
	"github.com/dev-tams/prunekit/internal/storage/prunable"
)

// Sink consumes one decision at a time. Implementations report how many
// removals and skips they saw so the run summary has something to print.
type Sink interface {
	Consume(ctx context.Context, d policy.Decision) error
	Removed() int
	Skipped() int
}

// DryRun prints what would happen and touches nothing.
type DryRun struct {
	Out     io.Writer
	removed int
	skipped int
}

func NewDryRun(out io.Writer) *DryRun {
	return &DryRun{Out: out}
}

func (s *DryRun) Consume(_ context.Context, d policy.Decision) error {
	switch d.Action {
	case policy.ActionRemove:
		s.removed++
		fmt.Fprintf(s.Out, "would remove: %s\n", d.Path)
	case policy.ActionSkip:
		s.skipped++
		fmt.Fprintf(s.Out, "would skip (%s): %s\n", d.Reason, d.Path)
	default:
		return fmt.Errorf("unknown decision action %q for %s", d.Action, d.Path)
	}
	return nil
}

func (s *DryRun) Removed() int { return s.removed }
func (s *DryRun) Skipped() int { return s.skipped }

// Applying deletes removed objects through a prunable.Remover. It remembers
// the subtree roots it already removed within the run, so a later remove
// decision nested under one of them is a no-op instead of an error.
type Applying struct {
	remover prunable.Remover
	roots   []string
	removed int
	skipped int
}

func NewApplying(remover prunable.Remover) *Applying {
	return &Applying{remover: remover}
}

func (s *Applying) Consume(ctx context.Context, d policy.Decision) error {
	switch d.Action {
	case policy.ActionSkip:
		s.skipped++
		return nil
	case policy.ActionRemove:
		s.removed++
		if s.alreadyRemoved(d.Path) {
			return nil
		}
		if err := s.remover.RemoveAll(ctx, d.Path); err != nil {
			return err
		}
		s.roots = append(s.roots, d.Path)
		return nil
	default:
		return fmt.Errorf("unknown decision action %q for %s", d.Action, d.Path)
	}
}

func (s *Applying) alreadyRemoved(path string) bool {
	for _, root := range s.roots {
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return false
}

func (s *Applying) Removed() int { return s.removed }
func (s *Applying) Skipped() int { return s.skipped }
