package portfind

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		before []string
		after  []string
		status Status
		port   string
	}{
		{"single removed", []string{"/dev/ttyACM0", "/dev/ttyACM1"}, []string{"/dev/ttyACM1"}, Found, "/dev/ttyACM0"},
		{"nothing removed", []string{"/dev/ttyACM0"}, []string{"/dev/ttyACM0"}, NoneRemoved, ""},
		{"empty snapshots", nil, nil, NoneRemoved, ""},
		{"only added", []string{"/dev/ttyACM0"}, []string{"/dev/ttyACM0", "/dev/ttyUSB0"}, NoneRemoved, ""},
		{"two removed", []string{"/dev/ttyACM0", "/dev/ttyACM1"}, nil, Ambiguous, ""},
		{"duplicates in before", []string{"/dev/ttyACM0", "/dev/ttyACM0"}, nil, Found, "/dev/ttyACM0"},
		{"removed and added", []string{"/dev/ttyACM0"}, []string{"/dev/ttyACM1"}, Found, "/dev/ttyACM0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Diff(tt.before, tt.after)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.port, res.Port)
			assert.Equal(t, tt.status == Found, res.OK())
		})
	}
}

// A port is returned exactly when one element is in before and not in after.
func TestDiff_ReturnsOnlyUniqueRemoval(t *testing.T) {
	universe := []string{"a", "b", "c", "d"}

	subsets := func() [][]string {
		var out [][]string
		for mask := 0; mask < 1<<len(universe); mask++ {
			var s []string
			for i, p := range universe {
				if mask&(1<<i) != 0 {
					s = append(s, p)
				}
			}
			out = append(out, s)
		}
		return out
	}()

	for _, before := range subsets {
		for _, after := range subsets {
			inAfter := map[string]bool{}
			for _, p := range after {
				inAfter[p] = true
			}
			var diff []string
			for _, p := range before {
				if !inAfter[p] {
					diff = append(diff, p)
				}
			}

			res := Diff(before, after)
			if len(diff) == 1 {
				require.True(t, res.OK(), "before=%v after=%v", before, after)
				require.Equal(t, diff[0], res.Port)
			} else {
				require.False(t, res.OK(), "before=%v after=%v", before, after)
				require.Empty(t, res.Port)
				require.Len(t, res.Removed, len(diff))
			}
		}
	}
}

type fakeLister struct {
	snapshots [][]string
	calls     int
}

func (f *fakeLister) Ports() ([]string, error) {
	if f.calls >= len(f.snapshots) {
		return nil, errors.New("no more snapshots")
	}
	s := f.snapshots[f.calls]
	f.calls++
	return s, nil
}

type recordingPrompter struct {
	steps  []Step
	failAt Step
	err    error
	onStep func(Step)
}

func (p *recordingPrompter) Confirm(step Step) error {
	p.steps = append(p.steps, step)
	if p.onStep != nil {
		p.onStep(step)
	}
	if p.err != nil && step == p.failAt {
		return p.err
	}
	return nil
}

func TestDetector_Found(t *testing.T) {
	lister := &fakeLister{snapshots: [][]string{
		{"/dev/ttyACM0", "/dev/ttyACM1"},
		{"/dev/ttyACM1"},
	}}
	prompter := &recordingPrompter{}
	d := &Detector{Lister: lister, Prompter: prompter}

	res, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", res.Port)
	assert.Equal(t, []Step{StepPlugged, StepUnplug, StepReconnect}, prompter.steps)
}

func TestDetector_AmbiguousStillAsksToReconnect(t *testing.T) {
	lister := &fakeLister{snapshots: [][]string{
		{"/dev/ttyACM0", "/dev/ttyACM1"},
		{},
	}}
	prompter := &recordingPrompter{}
	d := &Detector{Lister: lister, Prompter: prompter}

	res, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, res.Status)
	assert.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyACM1"}, res.Removed)
	assert.Contains(t, prompter.steps, StepReconnect)
}

func TestDetector_PromptAborted(t *testing.T) {
	aborted := errors.New("aborted")
	lister := &fakeLister{snapshots: [][]string{{"/dev/ttyACM0"}}}
	prompter := &recordingPrompter{failAt: StepUnplug, err: aborted}
	d := &Detector{Lister: lister, Prompter: prompter}

	_, err := d.Detect(context.Background())
	assert.ErrorIs(t, err, aborted)
	assert.Equal(t, 1, lister.calls)
}

func TestCrossCheck(t *testing.T) {
	found := Diff([]string{"/dev/a"}, nil)

	assert.Equal(t, found, crossCheck(found, nil))
	assert.Equal(t, found, crossCheck(found, []string{"/dev/a", "/dev/a"}))

	res := crossCheck(found, []string{"/dev/b"})
	assert.Equal(t, Ambiguous, res.Status)
	assert.Equal(t, []string{"/dev/a", "/dev/b"}, res.Removed)
}

func TestDetector_WatchConfirmsSnapshot(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "ttyACM0")
	other := filepath.Join(dir, "unrelated")
	require.NoError(t, os.WriteFile(dev, nil, 0644))
	require.NoError(t, os.WriteFile(other, nil, 0644))

	lister := &fakeLister{snapshots: [][]string{{dev}, {}}}
	prompter := &recordingPrompter{onStep: func(s Step) {
		if s == StepUnplug {
			os.Remove(other)
			os.Remove(dev)
			time.Sleep(100 * time.Millisecond)
		}
	}}
	d := &Detector{Lister: lister, Prompter: prompter, WatchDir: dir}

	res, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Found, res.Status)
	assert.Equal(t, dev, res.Port)
}

func TestDetector_UnwatchableDirFallsBackToSnapshots(t *testing.T) {
	lister := &fakeLister{snapshots: [][]string{{"COM3", "COM4"}, {"COM3"}}}
	prompter := &recordingPrompter{}
	d := &Detector{Lister: lister, Prompter: prompter, WatchDir: filepath.Join(t.TempDir(), "missing")}

	res, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Found, res.Status)
	assert.Equal(t, "COM4", res.Port)
	assert.Equal(t, []Step{StepPlugged, StepUnplug, StepReconnect}, prompter.steps)
}

func TestResult_ZeroIsNotFound(t *testing.T) {
	var res Result
	assert.Equal(t, Unknown, res.Status)
	assert.Equal(t, "unknown", res.Status.String())
	assert.False(t, res.OK())
}

func TestRemovalWatch(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "ttyUSB0")
	other := filepath.Join(dir, "ttyS0")
	require.NoError(t, os.WriteFile(dev, nil, 0644))
	require.NoError(t, os.WriteFile(other, nil, 0644))

	rw, err := startRemovalWatch(dir, []string{dev})
	require.NoError(t, err)

	require.NoError(t, os.Remove(other))
	require.NoError(t, os.Remove(dev))
	assert.Eventually(t, func() bool {
		return len(rw.Removed()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, rw.Close())
	assert.Equal(t, []string{dev}, rw.Removed())
}

func TestRemovalWatch_MissingDir(t *testing.T) {
	_, err := startRemovalWatch(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestNormalizePorts(t *testing.T) {
	got := normalizePorts([]string{
		"/dev/tty.usbmodem1101",
		"/dev/cu.usbmodem1101",
		"/dev/tty.Bluetooth-Incoming-Port",
		"/dev/cu.Bluetooth-Incoming-Port",
		"/dev/ttyACM0",
	})
	assert.Equal(t, []string{"/dev/cu.usbmodem1101", "/dev/ttyACM0"}, got)
}
