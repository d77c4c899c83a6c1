package queue

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Action is the post-processing operation applied to a job.
// The zero value is ActionBury.
type Action int

const (
	ActionBury Action = iota
	ActionDelete
	ActionRelease
)

func (a Action) String() string {
	switch a {
	case ActionDelete:
		return "delete"
	case ActionRelease:
		return "release"
	case ActionBury:
		return "bury"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction converts an action name into an Action.
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "delete":
		return ActionDelete, true
	case "release":
		return ActionRelease, true
	case "bury":
		return ActionBury, true
	}
	return ActionBury, false
}

// ReleaseOptions controls how a released job is requeued.
type ReleaseOptions struct {
	// Priority overrides the job's priority. Nil keeps the current one.
	Priority *uint32
	Delay    time.Duration
}

// Verdict is a handler's decision about a processed job.
type Verdict struct {
	Action  Action
	Release ReleaseOptions
}

func (v Verdict) String() string {
	return v.Action.String()
}

// Delete acknowledges the job and removes it from the queue.
func Delete() Verdict {
	return Verdict{Action: ActionDelete}
}

// Release puts the job back into its tube after delay.
func Release(delay time.Duration) Verdict {
	return Verdict{Action: ActionRelease, Release: ReleaseOptions{Delay: delay}}
}

// ReleaseWithPriority puts the job back with a new priority after delay.
func ReleaseWithPriority(priority uint32, delay time.Duration) Verdict {
	return Verdict{Action: ActionRelease, Release: ReleaseOptions{Priority: &priority, Delay: delay}}
}

// Bury quarantines the job for manual inspection.
func Bury() Verdict {
	return Verdict{}
}

// ResolveVerdict turns a handler result into a Verdict. It accepts:
//
//   - a Verdict or an Action
//   - the bare action name: "delete", "release" or "bury"
//   - the list form [action] or [action, options], where options is a map
//     with optional "priority" (number) and "delay" (seconds, or a duration
//     string such as "1m30s")
//   - the empty list
//
// Everything that does not name a known action resolves to Bury.
func ResolveVerdict(raw any) Verdict {
	switch v := raw.(type) {
	case Verdict:
		if !v.Action.valid() {
			return Bury()
		}
		return v
	case *Verdict:
		if v == nil {
			return Bury()
		}
		return ResolveVerdict(*v)
	case Action:
		if !v.valid() {
			return Bury()
		}
		return Verdict{Action: v}
	case string:
		a, _ := ParseAction(v)
		return Verdict{Action: a}
	case []string:
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		return resolveList(list)
	case []any:
		return resolveList(v)
	}
	return Bury()
}

func (a Action) valid() bool {
	return a == ActionBury || a == ActionDelete || a == ActionRelease
}

func resolveList(list []any) Verdict {
	if len(list) == 0 {
		return Bury()
	}
	name, ok := list[0].(string)
	if !ok {
		return Bury()
	}
	action, _ := ParseAction(name)
	verdict := Verdict{Action: action}
	if action != ActionRelease || len(list) < 2 {
		return verdict
	}

	opts, ok := list[1].(map[string]any)
	if !ok {
		return verdict
	}
	if p, ok := toUint32(opts["priority"]); ok {
		verdict.Release.Priority = &p
	}
	if d, ok := toDuration(opts["delay"]); ok {
		verdict.Release.Delay = d
	}
	return verdict
}

func toUint32(v any) (uint32, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		return n, true
	case uint64:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, false
	}
	if f < 0 || f > math.MaxUint32 {
		return 0, false
	}
	return uint32(f), true
}

func toDuration(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return max(d, 0), true
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, false
		}
		return max(parsed, 0), true
	case int:
		return max(time.Duration(d)*time.Second, 0), true
	case int64:
		return max(time.Duration(d)*time.Second, 0), true
	case float64:
		return max(time.Duration(d*float64(time.Second)), 0), true
	}
	return 0, false
}
