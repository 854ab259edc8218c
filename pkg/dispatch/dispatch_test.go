package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/robot"
)

var bothPorts = config.Config{
	config.KeyLeaderPort:   "/dev/ttyACM0",
	config.KeyFollowerPort: "/dev/ttyACM1",
}

func TestCalibrateArgs(t *testing.T) {
	s := DefaultSettings

	cmd, err := s.CalibrateArgs(bothPorts, robot.Leader)
	require.NoError(t, err)
	assert.Equal(t, CalibrateBin, cmd.Name)
	assert.Equal(t, []string{
		"--teleop.type=so101_leader",
		"--teleop.port=/dev/ttyACM0",
		"--teleop.id=Leader",
	}, cmd.Args)

	cmd, err = s.CalibrateArgs(bothPorts, robot.Follower)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--robot.type=so101_follower",
		"--robot.port=/dev/ttyACM1",
		"--robot.id=Follower",
	}, cmd.Args)
}

func TestCalibrateArgs_Guards(t *testing.T) {
	s := DefaultSettings

	_, err := s.CalibrateArgs(config.Config{}, robot.Leader)
	assert.ErrorIs(t, err, ErrLeaderPortUnset)

	_, err = s.CalibrateArgs(config.Config{config.KeyLeaderPort: "/dev/x"}, robot.Follower)
	assert.ErrorIs(t, err, ErrFollowerPortUnset)

	_, err = s.CalibrateArgs(bothPorts, robot.Role("other"))
	assert.Error(t, err)
}

func TestTeleoperateArgs(t *testing.T) {
	cmd, err := DefaultSettings.TeleoperateArgs(bothPorts)
	require.NoError(t, err)
	assert.Equal(t, TeleoperateBin, cmd.Name)
	assert.Equal(t, []string{
		"--robot.type=so101_follower",
		"--robot.port=/dev/ttyACM1",
		"--robot.id=Follower",
		"--robot.cameras=None",
		"--teleop.type=so101_leader",
		"--teleop.port=/dev/ttyACM0",
		"--teleop.id=Leader",
		"--display_data=True",
	}, cmd.Args)
}

func TestTeleoperateArgs_Guards(t *testing.T) {
	for _, cfg := range []config.Config{
		{},
		{config.KeyLeaderPort: "/dev/a"},
		{config.KeyFollowerPort: "/dev/b"},
	} {
		_, err := DefaultSettings.TeleoperateArgs(cfg)
		assert.ErrorIs(t, err, ErrPortsUnset)
	}
}

func TestRecordArgs(t *testing.T) {
	cfg := config.Config{
		config.KeyLeaderPort:   "/dev/ttyACM0",
		config.KeyFollowerPort: "/dev/ttyACM1",
		config.KeyRobotCameras: "{front: {type: opencv, index_or_path: 0}}",
	}
	cmd, err := DefaultSettings.RecordArgs(cfg, RecordRequest{
		RepoID:   "lehungry-robotum/grab_tape",
		Episodes: 10,
		Task:     "grab tape",
	})
	require.NoError(t, err)
	assert.Equal(t, RecordBin, cmd.Name)
	assert.Equal(t, []string{
		"--robot.type=so101_follower",
		"--robot.port=/dev/ttyACM1",
		"--robot.id=Follower",
		"--robot.cameras={front: {type: opencv, index_or_path: 0}}",
		"--teleop.type=so101_leader",
		"--teleop.port=/dev/ttyACM0",
		"--teleop.id=Leader",
		"--display_data=true",
		"--dataset.repo_id=lehungry-robotum/grab_tape",
		"--dataset.num_episodes=10",
		"--dataset.single_task=grab tape",
		"--resume=false",
	}, cmd.Args)
}

func TestRecordArgs_Defaults(t *testing.T) {
	cmd, err := DefaultSettings.RecordArgs(bothPorts, RecordRequest{RepoID: "ns/ds", Resume: true})
	require.NoError(t, err)
	assert.Contains(t, cmd.Args, "--dataset.num_episodes=5")
	assert.Contains(t, cmd.Args, "--dataset.single_task=generic task")
	assert.Contains(t, cmd.Args, "--resume=true")

	_, err = DefaultSettings.RecordArgs(bothPorts, RecordRequest{})
	assert.Error(t, err)

	_, err = DefaultSettings.RecordArgs(config.Config{}, RecordRequest{RepoID: "ns/ds"})
	assert.ErrorIs(t, err, ErrPortsUnset)
}

func TestParseEpisodes(t *testing.T) {
	n, err := ParseEpisodes("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEpisodes, n)

	n, err = ParseEpisodes(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	for _, bad := range []string{"x", "0", "-3"} {
		_, err := ParseEpisodes(bad)
		assert.Error(t, err, bad)
	}
}

func TestRepoID(t *testing.T) {
	assert.Equal(t, "lehungry-robotum/test", RepoID("lehungry-robotum", "test"))
}

// TestHelperProcess is run as a child process by the ExecRunner tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("DISPATCH_HELPER") != "1" {
		return
	}
	code, _ := strconv.Atoi(os.Getenv("DISPATCH_EXIT"))
	if os.Getenv("DISPATCH_INTERRUPT_PARENT") == "1" {
		// what the terminal does on Ctrl+C: the whole foreground group gets SIGINT
		if parent, err := os.FindProcess(os.Getppid()); err == nil {
			parent.Signal(os.Interrupt)
		}
		time.Sleep(200 * time.Millisecond)
	}
	if d, err := time.ParseDuration(os.Getenv("DISPATCH_SLEEP")); err == nil {
		time.Sleep(d)
	}
	fmt.Fprint(os.Stdout, "helper output")
	os.Exit(code)
}

func helperCommand(t *testing.T, exit int) Command {
	t.Setenv("DISPATCH_HELPER", "1")
	t.Setenv("DISPATCH_EXIT", strconv.Itoa(exit))
	return Command{Name: os.Args[0], Args: []string{"-test.run=TestHelperProcess"}}
}

func TestExecRunner(t *testing.T) {
	var stdout bytes.Buffer
	r := &ExecRunner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	out := r.Run(context.Background(), helperCommand(t, 0))
	assert.Equal(t, Succeeded, out.Status)
	assert.Equal(t, "helper output", stdout.String())

	out = r.Run(context.Background(), helperCommand(t, 3))
	assert.Equal(t, Failed, out.Status)
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, "Calibration ended/failed with exit code 3", out.Report("Calibration"))
}

func TestExecRunner_NotFound(t *testing.T) {
	r := &ExecRunner{}
	out := r.Run(context.Background(), Command{Name: "lerobot-definitely-not-installed"})
	assert.Equal(t, NotFound, out.Status)
	assert.Equal(t, "Error: 'lerobot-definitely-not-installed' command not found in PATH.", out.Report("Recording"))
}

func TestExecRunner_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	out := r.Run(ctx, helperCommand(t, 0))
	assert.Equal(t, Interrupted, out.Status)
	assert.Equal(t, "Teleoperation stopped.", out.Report("Teleoperation"))
}

func TestExecRunner_CancelLeavesChildRunning(t *testing.T) {
	t.Setenv("DISPATCH_SLEEP", "200ms")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var stdout bytes.Buffer
	r := &ExecRunner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	out := r.Run(ctx, helperCommand(t, 0))
	assert.Equal(t, Interrupted, out.Status)
	assert.Equal(t, "helper output", stdout.String())
}

func TestExecRunner_UserInterrupt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("interrupts cannot be sent to a process on windows")
	}
	t.Setenv("DISPATCH_INTERRUPT_PARENT", "1")

	r := &ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	out := r.Run(context.Background(), helperCommand(t, 130))
	assert.Equal(t, Interrupted, out.Status)
	assert.Equal(t, "Teleoperation stopped.", out.Report("Teleoperation"))
}

func TestOutcome_Report(t *testing.T) {
	cmd := Command{Name: RecordBin}
	assert.Equal(t, "Recording process finished.", Outcome{Command: cmd, Status: Succeeded}.Report("Recording"))
	assert.Contains(t, Outcome{Command: cmd, Status: StartFailed, Err: errors.New("boom")}.Report("Recording"), "boom")
}

type fakeRunner struct {
	outcome Outcome
	ran     []Command
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) Outcome {
	f.ran = append(f.ran, cmd)
	out := f.outcome
	out.Command = cmd
	return out
}

type fakeTagger struct {
	repo, tag string
	err       error
}

func (f *fakeTagger) CreateTag(ctx context.Context, repoID, tag string) error {
	f.repo, f.tag = repoID, tag
	return f.err
}

func version(v string, err error) VersionFunc {
	return func(context.Context) (string, error) { return v, err }
}

func TestRecorder_TagsNewDataset(t *testing.T) {
	tagger := &fakeTagger{}
	r := &Recorder{
		Runner:  &fakeRunner{outcome: Outcome{Status: Succeeded}},
		Tagger:  tagger,
		Version: version("0.4.2", nil),
	}

	res := r.Record(context.Background(), Command{Name: RecordBin}, RecordRequest{RepoID: "ns/ds"})
	assert.Equal(t, Succeeded, res.Outcome.Status)
	assert.True(t, res.Tagged())
	assert.Equal(t, "ns/ds", tagger.repo)
	assert.Equal(t, "v0.4.2", tagger.tag)
}

func TestRecorder_SkipsTagOnResumeOrFailure(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		resume bool
	}{
		{"resumed", Succeeded, true},
		{"failed", Failed, false},
		{"interrupted", Interrupted, false},
		{"not found", NotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagger := &fakeTagger{}
			r := &Recorder{
				Runner:  &fakeRunner{outcome: Outcome{Status: tt.status}},
				Tagger:  tagger,
				Version: version("0.4.2", nil),
			}
			res := r.Record(context.Background(), Command{}, RecordRequest{RepoID: "ns/ds", Resume: tt.resume})
			assert.Equal(t, tt.status, res.Outcome.Status)
			assert.Empty(t, res.Tag)
			assert.Empty(t, tagger.tag)
		})
	}
}

func TestRecorder_TagFailureIsNonFatal(t *testing.T) {
	r := &Recorder{
		Runner:  &fakeRunner{outcome: Outcome{Status: Succeeded}},
		Tagger:  &fakeTagger{err: errors.New("401 unauthorized")},
		Version: version("v0.3.3", nil),
	}

	res := r.Record(context.Background(), Command{}, RecordRequest{RepoID: "ns/ds"})
	assert.Equal(t, Succeeded, res.Outcome.Status)
	assert.Equal(t, "v0.3.3", res.Tag)
	assert.Error(t, res.TagErr)
	assert.False(t, res.Tagged())

	r.Version = version("", errors.New("no python"))
	res = r.Record(context.Background(), Command{}, RecordRequest{RepoID: "ns/ds"})
	assert.Equal(t, Succeeded, res.Outcome.Status)
	assert.Error(t, res.TagErr)
}
