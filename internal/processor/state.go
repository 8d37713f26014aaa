package processor

import "fmt"

// State is the pipeline stage a dataset has reached.
type State int

// Pipeline states in processing order.
const (
	Uninitialized State = iota
	RawFetched
	Parsed
	Annotated
	Filtered
	Labeled
	Saved
)

var stateNames = [...]string{
	Uninitialized: "uninitialized",
	RawFetched:    "raw_fetched",
	Parsed:        "parsed",
	Annotated:     "annotated",
	Filtered:      "filtered",
	Labeled:       "labeled",
	Saved:         "saved",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState returns the state with the given name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return Uninitialized, fmt.Errorf("unknown state %q", name)
}

// StageError reports a stage invoked out of order.
type StageError struct {
	Stage   string
	Current State
	Minimum State // earliest state the stage accepts
	Maximum State // latest state the stage accepts
}

func (e *StageError) Error() string {
	if e.Current < e.Minimum {
		return fmt.Sprintf("%s requires state %s, dataset is %s", e.Stage, e.Minimum, e.Current)
	}
	return fmt.Sprintf("%s is not allowed after %s, dataset is %s", e.Stage, e.Maximum, e.Current)
}
