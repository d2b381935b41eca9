package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dev-tams/prunekit/internal/config"
	"github.com/dev-tams/prunekit/internal/notify"
	"github.com/dev-tams/prunekit/internal/pipeline"
	"github.com/dev-tams/prunekit/internal/policy"
	"github.com/dev-tams/prunekit/internal/sink"
	"github.com/dev-tams/prunekit/internal/storage"
	"github.com/dev-tams/prunekit/internal/timefmt"
)

const notificationTimeout = 5 * time.Second

type PruneOptions struct {
	DryRun  bool
	Verbose bool

	// Force suppresses interactive confirmation. Nothing prompts today, so
	// the flag is accepted and carried but changes no behavior.
	Force bool

	// Start/End override the configured window for every target when set.
	Start *time.Time
	End   *time.Time

	// Out receives dry-run lines, warnings, and summaries. Defaults to stdout.
	Out io.Writer
}

type PruneResult struct {
	Target   string
	Status   string
	Removed  int
	Skipped  int
	Warnings []policy.Warning
	DryRun   bool
	Duration time.Duration
	Err      error
}

func RunPrune(ctx context.Context, cfg *config.Config, opts PruneOptions) error {
	_, err := RunPruneWithResults(ctx, cfg, opts)
	return err
}

// RunPruneWithResults runs every configured prune target in order. The first
// failure aborts the run; the returned slice covers the targets attempted so
// far, including the failed one.
func RunPruneWithResults(ctx context.Context, cfg *config.Config, opts PruneOptions) ([]PruneResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	usedStorage := make(map[string]struct{}, len(cfg.Prunes))
	for _, p := range cfg.Prunes {
		usedStorage[p.Storage] = struct{}{}
	}

	stores, err := storage.FromConfigByNames(ctx, cfg, usedStorage)
	if err != nil {
		return nil, err
	}

	dispatcher, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		return nil, err
	}

	results := make([]PruneResult, 0, len(cfg.Prunes))

	for _, p := range cfg.Prunes {
		res := pruneOne(ctx, p, stores, opts)
		results = append(results, res)
		notifyResult(ctx, dispatcher, res, opts.Verbose)

		if res.Err != nil {
			return results, res.Err
		}

		fmt.Fprintf(
			opts.Out,
			"prune OK: target=%s removed=%d skipped=%d warnings=%d dry_run=%v duration=%s\n",
			res.Target,
			res.Removed,
			res.Skipped,
			len(res.Warnings),
			res.DryRun,
			res.Duration.Round(time.Millisecond),
		)
	}

	return results, nil
}

func pruneOne(ctx context.Context, p config.PruneConfig, stores map[string]storage.Store, opts PruneOptions) PruneResult {
	started := time.Now().UTC()

	res := PruneResult{
		Target: p.Name,
		Status: notify.StatusFailure,
		DryRun: opts.DryRun,
	}
	fail := func(err error) PruneResult {
		res.Duration = time.Since(started)
		res.Err = err
		return res
	}

	st, ok := stores[p.Storage]
	if !ok {
		return fail(fmt.Errorf("target %s: storage %q not found", p.Name, p.Storage))
	}

	expect, err := p.CompiledExpect()
	if err != nil {
		return fail(fmt.Errorf("target %s: %w", p.Name, err))
	}

	engine, err := policy.New(p.Policy, policy.Config{Expect: expect})
	if err != nil {
		return fail(fmt.Errorf("target %s: %w", p.Name, err))
	}

	start, end, err := p.Window()
	if err != nil {
		return fail(fmt.Errorf("target %s: %w", p.Name, err))
	}
	if opts.Start != nil {
		start = opts.Start
	}
	if opts.End != nil {
		end = opts.End
	}

	if opts.Verbose {
		fmt.Fprintf(
			opts.Out,
			"prune: target=%s storage=%s root=%s policy=%s expect=%d dry_run=%v\n",
			p.Name,
			st.Name(),
			p.Root,
			p.Policy,
			len(expect),
			opts.DryRun,
		)
	}

	var decider sink.Sink
	if opts.DryRun {
		decider = sink.NewDryRun(opts.Out)
	} else {
		decider = sink.NewApplying(st)
	}

	err = pipeline.Run(ctx, pipeline.Options{
		Walker:  st,
		Root:    p.Root,
		Formats: timefmt.New(p.TimeFormats),
		Start:   start,
		End:     end,
		Engine:  engine,
		Sink:    decider,
		OnWarning: func(w policy.Warning) {
			res.Warnings = append(res.Warnings, w)
			fmt.Fprintf(opts.Out, "warning: target=%s code=%s %s\n", p.Name, w.Code, w.Message)
		},
	})
	if err != nil {
		return fail(fmt.Errorf("prune failed for %s: %w", p.Name, err))
	}

	res.Status = notify.StatusSuccess
	res.Removed = decider.Removed()
	res.Skipped = decider.Skipped()
	res.Duration = time.Since(started)
	return res
}

func notifyResult(ctx context.Context, dispatcher *notify.Dispatcher, res PruneResult, verbose bool) {
	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}

	event := notify.Event{
		Target:   res.Target,
		Status:   res.Status,
		Removed:  res.Removed,
		Skipped:  res.Skipped,
		Warnings: len(res.Warnings),
		DryRun:   res.DryRun,
		Duration: res.Duration.Round(time.Millisecond).String(),
		Error:    errMsg,
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := dispatcher.Notify(notifyCtx, event); err != nil && verbose {
		fmt.Printf("notification failed: target=%s status=%s err=%v\n", res.Target, res.Status, err)
	}
}

func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}
