// Package portfind identifies the serial device of an arm by asking the user
// to unplug it and comparing the ports seen before and after.
package portfind

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"
)

// Status is the outcome of comparing two port snapshots.
type Status int

const (
	Unknown     Status = iota // no comparison made
	Found                     // exactly one port disappeared
	NoneRemoved               // nothing disappeared
	Ambiguous                 // more than one port disappeared
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NoneRemoved:
		return "none removed"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Result describes which ports disappeared between two snapshots.
type Result struct {
	Status  Status
	Removed []string // sorted
	Port    string   // set only when Status is Found
}

// OK reports whether a unique port was identified.
func (r Result) OK() bool {
	return r.Status == Found && r.Port != ""
}

// Diff returns the ports present in before but missing from after.
func Diff(before, after []string) Result {
	present := make(map[string]bool, len(after))
	for _, p := range after {
		present[p] = true
	}

	seen := make(map[string]bool, len(before))
	var removed []string
	for _, p := range before {
		if present[p] || seen[p] {
			continue
		}
		seen[p] = true
		removed = append(removed, p)
	}
	sort.Strings(removed)

	switch len(removed) {
	case 0:
		return Result{Status: NoneRemoved}
	case 1:
		return Result{Status: Found, Removed: removed, Port: removed[0]}
	default:
		return Result{Status: Ambiguous, Removed: removed}
	}
}

// Lister enumerates the serial devices currently present.
type Lister interface {
	Ports() ([]string, error)
}

// Step identifies a point in the detection flow where the user must act.
type Step int

const (
	StepPlugged   Step = iota // device must be connected
	StepUnplug                // user unplugs the device now
	StepReconnect             // user plugs the device back in
)

// Prompter blocks until the user confirms the given step.
type Prompter interface {
	Confirm(step Step) error
}

// Detector runs the unplug/replug flow.
type Detector struct {
	Lister   Lister
	Prompter Prompter

	// WatchDir, when set, is watched for device removal while the user
	// unplugs, and the event is cross-checked against the snapshot result.
	// A directory that cannot be watched leaves only the snapshot diff.
	WatchDir string
	Logger   *log.Logger
}

func (d *Detector) logger() *log.Logger {
	if d.Logger == nil {
		return log.New(io.Discard)
	}
	return d.Logger
}

// Detect captures the ports, waits for the user to unplug the device, captures
// them again and returns the difference. The user is always asked to reconnect
// the device before Detect returns, even when no unique port was found.
func (d *Detector) Detect(ctx context.Context) (Result, error) {
	if err := d.Prompter.Confirm(StepPlugged); err != nil {
		return Result{}, err
	}

	before, err := d.Lister.Ports()
	if err != nil {
		return Result{}, fmt.Errorf("list ports: %w", err)
	}

	var watch *removalWatch
	if d.WatchDir != "" {
		watch, err = startRemovalWatch(d.WatchDir, before)
		if err != nil {
			d.logger().Warn("removal events unavailable, comparing snapshots only", "err", err)
		} else {
			defer watch.Close()
		}
	}

	if err := d.Prompter.Confirm(StepUnplug); err != nil {
		return Result{}, err
	}

	after, err := d.Lister.Ports()
	if err != nil {
		return Result{}, fmt.Errorf("list ports: %w", err)
	}
	res := Diff(before, after)

	if watch != nil {
		res = crossCheck(res, watch.Removed())
	}

	if err := d.Prompter.Confirm(StepReconnect); err != nil {
		return res, err
	}
	return res, ctx.Err()
}

// crossCheck demotes a snapshot result to Ambiguous when the removal events
// name other devices than the snapshot did.
func crossCheck(res Result, events []string) Result {
	if res.Status != Found || len(events) == 0 {
		return res
	}
	all := append(append([]string{}, res.Removed...), events...)
	return Diff(all, nil)
}
