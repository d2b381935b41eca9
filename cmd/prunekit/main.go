package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dev-tams/prunekit/internal/app"
	"github.com/dev-tams/prunekit/internal/config"
	"github.com/dev-tams/prunekit/internal/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "prunekit",
		Usage: "retention pruning for time-named backup objects",
		Commands: []*cli.Command{
			{
				Name:  "prune",
				Usage: "apply the retention policy to the configured targets",
				Flags: append(
					commonFlags(),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "report decisions without deleting anything",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "suppress interactive confirmation",
					},
					&cli.StringFlag{
						Name:  "start",
						Usage: "only consider objects on or after this date (2006-01-02 or RFC3339)",
					},
					&cli.StringFlag{
						Name:  "end",
						Usage: "only consider objects on or before this date (2006-01-02 or RFC3339)",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadValidatedConfig(c.String("config"))
					if err != nil {
						return err
					}

					opts, err := pruneOptions(c)
					if err != nil {
						return err
					}

					return app.RunPrune(c.Context, cfg, opts)
				},
			},
			{
				Name:  "daemon",
				Usage: "run prunes on their configured schedules",
				Flags: append(
					commonFlags(),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "report decisions without deleting anything",
					},
					&cli.DurationFlag{
						Name:  "run-timeout",
						Usage: "abort a scheduled run that exceeds this duration (0 = no timeout)",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadValidatedConfig(c.String("config"))
					if err != nil {
						return err
					}

					opts := app.PruneOptions{
						DryRun:  c.Bool("dry-run"),
						Verbose: c.Bool("verbose"),
					}

					return app.RunDaemon(c.Context, cfg, opts, c.Duration("run-timeout"))
				},
			},
			{
				Name:  "test",
				Usage: "verify prune configuration, storage wiring, and policies",
				Flags: commonFlags(),
				Action: func(c *cli.Context) error {
					cfg, err := loadValidatedConfig(c.String("config"))
					if err != nil {
						return err
					}
					if _, err := storage.FromConfig(c.Context, cfg); err != nil {
						return err
					}
					fmt.Println("config OK")
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Required: true,
			Usage:    "path to config yaml",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
	}
}

func pruneOptions(c *cli.Context) (app.PruneOptions, error) {
	opts := app.PruneOptions{
		DryRun:  c.Bool("dry-run"),
		Force:   c.Bool("force"),
		Verbose: c.Bool("verbose"),
	}

	start, err := parseBoundFlag(c.String("start"))
	if err != nil {
		return opts, fmt.Errorf("--start: %w", err)
	}
	end, err := parseBoundFlag(c.String("end"))
	if err != nil {
		return opts, fmt.Errorf("--end: %w", err)
	}
	if start != nil && end != nil && start.After(*end) {
		return opts, fmt.Errorf("--start is after --end")
	}
	opts.Start = start
	opts.End = end

	return opts, nil
}

func parseBoundFlag(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q (want 2006-01-02 or RFC3339)", raw)
}

func loadValidatedConfig(cfgPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
