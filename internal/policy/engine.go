package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Engine transforms a finite stream of records into one decision per record,
// with non-fatal warnings on a side channel. Both output channels are closed
// once every ingested record is accounted for; at most one fatal error is
// delivered, after which no further decisions are guaranteed.
type Engine interface {
	Run(ctx context.Context, in <-chan Record) (<-chan Decision, <-chan Warning, <-chan error)
}

// Config is the caller-facing policy configuration. Expect patterns are
// copied at construction, so later mutation by the caller has no effect.
type Config struct {
	Expect []*regexp.Regexp
}

type constructor func(Config) Engine

var registry = map[string]constructor{
	"bimonthly": newBimonthly,
}

// New resolves a policy by name, case-insensitively. Unknown names fail here,
// at configuration time, before any storage I/O happens.
func New(name string, cfg Config) (Engine, error) {
	c, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported policy: %s", name)
	}
	return c(cfg), nil
}

// Supported reports whether name resolves to a known policy.
func Supported(name string) bool {
	_, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
