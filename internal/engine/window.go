package engine

import (
	"fmt"
	"strings"

	"github.com/coffersTech/ftfcut/internal/ftf"
)

// Window is an inclusive timestamp range in trace ticks.
type Window struct {
	Start uint64 `json:"start_ts"`
	End   uint64 `json:"end_ts"`
}

// Everything matches every timestamp.
var Everything = Window{Start: 0, End: ^uint64(0)}

func (w Window) Validate() error {
	if w.Start > w.End {
		return fmt.Errorf("start timestamp %d is after end timestamp %d", w.Start, w.End)
	}
	return nil
}

func (w Window) Contains(ts uint64) bool {
	return w.Start <= ts && ts <= w.End
}

func (w Window) String() string {
	return fmt.Sprintf("[%d, %d]", w.Start, w.End)
}

// UnknownEventPolicy decides what happens to events whose type is not
// filtered by timestamp.
type UnknownEventPolicy string

const (
	PolicyInclude UnknownEventPolicy = "include"
	PolicyDrop    UnknownEventPolicy = "drop"
	PolicyFail    UnknownEventPolicy = "fail"
)

func ParsePolicy(s string) (UnknownEventPolicy, error) {
	switch p := UnknownEventPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyInclude, PolicyDrop, PolicyFail:
		return p, nil
	case "":
		return PolicyInclude, nil
	default:
		return "", fmt.Errorf("unknown event policy %q (want include, drop or fail)", s)
	}
}

// Filter is the inclusion policy for one run.
type Filter struct {
	Window  Window
	Unknown UnknownEventPolicy
}

// Decision is the outcome of applying a Filter to one event.
type Decision int

const (
	Keep Decision = iota
	Drop
	Reject
)

// Decide classifies an event. Windowed types are kept iff their timestamp is
// inside the window; other types follow the unknown-event policy.
func (f Filter) Decide(e *ftf.Event) Decision {
	if e.Type.Windowed() {
		if f.Window.Contains(e.Timestamp) {
			return Keep
		}
		return Drop
	}
	switch f.Unknown {
	case PolicyDrop:
		return Drop
	case PolicyFail:
		return Reject
	default:
		return Keep
	}
}
