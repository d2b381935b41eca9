package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dev-tams/prunekit/internal/config"
	"github.com/dev-tams/prunekit/internal/schedule"
)

type daemonJob struct {
	prune    config.PruneConfig
	schedule schedule.CronSpec
}

func RunDaemon(ctx context.Context, cfg *config.Config, opts PruneOptions, runTimeout time.Duration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	jobs := make([]daemonJob, 0, len(cfg.Prunes))
	for _, p := range cfg.Prunes {
		s := strings.TrimSpace(p.Schedule)
		if s == "" {
			if opts.Verbose {
				fmt.Printf("daemon: target=%s skipped (empty schedule)\n", p.Name)
			}
			continue
		}

		spec, err := schedule.ParseCronSpec(s)
		if err != nil {
			return fmt.Errorf("target %s: invalid schedule %q: %w", p.Name, s, err)
		}
		jobs = append(jobs, daemonJob{prune: p, schedule: spec})
	}

	if len(jobs) == 0 {
		return fmt.Errorf("daemon: no prune targets with a valid non-empty schedule")
	}

	if opts.Verbose {
		fmt.Printf("daemon: started with %d scheduled target(s)\n", len(jobs))
	}

	lastMinute := time.Time{}
	lastRunByTarget := make(map[string]time.Time, len(jobs))

	for {
		select {
		case <-ctx.Done():
			if opts.Verbose {
				fmt.Println("daemon: shutdown requested")
			}
			return nil
		default:
		}

		now := time.Now().UTC()
		currentMinute := now.Truncate(time.Minute)
		if currentMinute.Equal(lastMinute) {
			sleepUntilNextPoll(ctx, 500*time.Millisecond)
			continue
		}
		lastMinute = currentMinute

		due := make([]config.PruneConfig, 0, len(jobs))
		for _, job := range jobs {
			if !job.schedule.Matches(currentMinute) {
				continue
			}
			if lm, ok := lastRunByTarget[job.prune.Name]; ok && lm.Equal(currentMinute) {
				continue
			}
			due = append(due, job.prune)
		}

		if len(due) == 0 {
			continue
		}

		runCfg := *cfg
		runCfg.Prunes = due

		if opts.Verbose {
			fmt.Printf("daemon: triggering %d prune job(s) at %s UTC\n", len(due), currentMinute.Format(time.RFC3339))
		}

		runCtx := ctx
		cancel := func() {}
		if runTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, runTimeout)
		}

		err := RunPrune(runCtx, &runCfg, opts)
		cancel()
		if err != nil {
			if runTimeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				if opts.Verbose {
					fmt.Printf(
						"daemon: run timeout after %s at %s UTC for %d job(s)\n",
						runTimeout,
						currentMinute.Format(time.RFC3339),
						len(due),
					)
				}
				return fmt.Errorf("daemon run timed out after %s", runTimeout)
			}
			return fmt.Errorf("daemon run: %w", err)
		}

		for _, p := range due {
			lastRunByTarget[p.Name] = currentMinute
		}
	}
}

func sleepUntilNextPoll(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
