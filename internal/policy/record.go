package policy

import "time"

// Record is one storage object discovered by traversal, annotated with the
// calendar date derived from its path. When is nil if the path carried no
// recognizable date; the engine treats that as fatal input.
type Record struct {
	Path     string
	Kind     string
	Basename string
	When     *time.Time
}

type Action string

const (
	ActionRemove Action = "remove"
	ActionSkip   Action = "skip"
)

// Decision is the engine's output unit: one per ingested record. Reason is
// set exactly when Action is skip.
type Decision struct {
	Action Action
	Path   string
	Reason string
}

// Warning codes emitted by the bimonthly engine.
const (
	WarnMissing = "nerr_missing"
	WarnNoDay1  = "nwarn_noday1"
	WarnNoDay2  = "nwarn_noday2"
)

type Warning struct {
	Code    string
	Message string
	Year    int
	Month   time.Month
}
