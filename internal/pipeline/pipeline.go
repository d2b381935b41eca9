package pipeline

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dev-tams/prunekit/internal/policy"
	"github.com/dev-tams/prunekit/internal/sink"
	"github.com/dev-tams/prunekit/internal/storage/prunable"
	"github.com/dev-tams/prunekit/internal/timefmt"
)

// inFlight bounds the buffer between adjacent stages, so a slow sink applies
// backpressure all the way up to the storage walk.
const inFlight = 32

type Options struct {
	Walker  prunable.Walker
	Root    string
	Formats *timefmt.Formats
	Start   *time.Time
	End     *time.Time
	Engine  policy.Engine
	Sink    sink.Sink

	// OnWarning receives each engine warning as it happens. Optional.
	OnWarning func(policy.Warning)
}

// Annotate attaches the basename and the calendar date derived from the
// record's path. Pure; a path with no recognizable date leaves When nil.
func Annotate(f *timefmt.Formats, rec policy.Record) policy.Record {
	rec.Basename = path.Base(rec.Path)
	if t, ok := f.ExtractBeginTime(rec.Path); ok {
		rec.When = &t
	}
	return rec
}

// Run wires walker -> annotate -> engine -> sink and drives one prune
// operation to completion. The first stage failure cancels everything else
// and is returned wrapped with the failing stage's label (finder, policy, or
// remover); buffered-but-undecided records are discarded, not flushed.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan policy.Record, inFlight)
	finderErr := make(chan error, 1)

	// Finder stage. A walk failure is parked in finderErr and the shared
	// context cancelled before records closes, so the engine never reaches
	// its decision phase on a partial tree that the sink would act on.
	go func() {
		err := opts.Walker.Walk(ctx, opts.Root, func(obj prunable.Object) error {
			if !opts.Formats.RangeContains(opts.Start, opts.End, obj.Path) {
				return nil
			}
			rec := Annotate(opts.Formats, policy.Record{Path: obj.Path, Kind: obj.Kind})
			select {
			case records <- rec:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			finderErr <- err
			cancel()
		}
		close(finderErr)
		close(records)
	}()

	decisions, warnings, policyErr := opts.Engine.Run(ctx, records)

	for decisions != nil || warnings != nil {
		select {
		case d, ok := <-decisions:
			if !ok {
				decisions = nil
				continue
			}
			// A parked finder failure outranks any decision in flight: it
			// was buffered before the engine could start emitting, so this
			// check keeps a partial walk from ever reaching the sink.
			if finderErr != nil {
				select {
				case err, ok := <-finderErr:
					if ok && err != nil {
						return fmt.Errorf("finder: %w", err)
					}
					finderErr = nil
				default:
				}
			}
			if err := opts.Sink.Consume(ctx, d); err != nil {
				cancel()
				return fmt.Errorf("remover: %w", err)
			}
		case w, ok := <-warnings:
			if !ok {
				warnings = nil
				continue
			}
			if opts.OnWarning != nil {
				opts.OnWarning(w)
			}
		case err, ok := <-policyErr:
			if ok && err != nil {
				cancel()
				return fmt.Errorf("policy: %w", err)
			}
			policyErr = nil
		}
	}

	// Drain the engine's error channel before touching finderErr. The engine
	// closes its error channel before its decision channel, so this read never
	// blocks once the loop above has ended; finderErr, on the other hand, only
	// closes once the walk unwinds, and a fatal engine error can leave the
	// walker wedged on a full records buffer until we cancel.
	if policyErr != nil {
		if err, ok := <-policyErr; ok && err != nil {
			cancel()
			return fmt.Errorf("policy: %w", err)
		}
	}
	if finderErr != nil {
		if err, ok := <-finderErr; ok && err != nil {
			return fmt.Errorf("finder: %w", err)
		}
	}
	return nil
}
