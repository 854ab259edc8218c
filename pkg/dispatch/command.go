// Package dispatch builds and runs the toolkit's calibrate, teleoperate and
// record executables from the stored configuration.
package dispatch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/robot"
)

// Executable names of the toolkit.
const (
	CalibrateBin   = "lerobot-calibrate"
	TeleoperateBin = "lerobot-teleoperate"
	RecordBin      = "lerobot-record"
)

// NoCameras is passed when no cameras are configured.
const NoCameras = "None"

// Guard errors returned when a command cannot be built from the configuration.
var (
	ErrLeaderPortUnset   = errors.New("leader port not set, please 'Find Port' first")
	ErrFollowerPortUnset = errors.New("follower port not set, please 'Find Port' first")
	ErrPortsUnset        = errors.New("both leader and follower ports must be set")
)

// Command is an executable and its arguments.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Settings describe the arms passed to the toolkit.
type Settings struct {
	RobotType   string
	RobotID     string
	TeleopType  string
	TeleopID    string
	DisplayData bool
}

// DefaultSettings matches a pair of SO-101 arms.
var DefaultSettings = Settings{
	RobotType:   "so101_follower",
	RobotID:     "Follower",
	TeleopType:  "so101_leader",
	TeleopID:    "Leader",
	DisplayData: true,
}

// DeviceType returns the toolkit device type and id used for role.
func (s Settings) DeviceType(role robot.Role) (deviceType, id string) {
	if role == robot.Leader {
		return s.TeleopType, s.TeleopID
	}
	return s.RobotType, s.RobotID
}

func (s Settings) robotArgs(port, cameras string) []string {
	args := []string{
		"--robot.type=" + s.RobotType,
		"--robot.port=" + port,
		"--robot.id=" + s.RobotID,
	}
	if cameras != "" {
		args = append(args, "--robot.cameras="+cameras)
	}
	return args
}

func (s Settings) teleopArgs(port string) []string {
	return []string{
		"--teleop.type=" + s.TeleopType,
		"--teleop.port=" + port,
		"--teleop.id=" + s.TeleopID,
	}
}

// CalibrateArgs builds the calibration command for one arm.
func (s Settings) CalibrateArgs(cfg config.Config, role robot.Role) (Command, error) {
	switch role {
	case robot.Leader:
		port := cfg.Get(config.KeyLeaderPort, "")
		if port == "" {
			return Command{}, ErrLeaderPortUnset
		}
		return Command{Name: CalibrateBin, Args: s.teleopArgs(port)}, nil
	case robot.Follower:
		port := cfg.Get(config.KeyFollowerPort, "")
		if port == "" {
			return Command{}, ErrFollowerPortUnset
		}
		return Command{Name: CalibrateBin, Args: s.robotArgs(port, "")}, nil
	default:
		return Command{}, fmt.Errorf("unknown role %q", role)
	}
}

func ports(cfg config.Config) (leader, follower string, err error) {
	leader = cfg.Get(config.KeyLeaderPort, "")
	follower = cfg.Get(config.KeyFollowerPort, "")
	if leader == "" || follower == "" {
		return "", "", ErrPortsUnset
	}
	return leader, follower, nil
}

// TeleoperateArgs builds the teleoperation command.
func (s Settings) TeleoperateArgs(cfg config.Config) (Command, error) {
	leader, follower, err := ports(cfg)
	if err != nil {
		return Command{}, err
	}

	args := s.robotArgs(follower, cfg.Get(config.KeyRobotCameras, NoCameras))
	args = append(args, s.teleopArgs(leader)...)
	args = append(args, "--display_data="+pyBool(s.DisplayData))
	return Command{Name: TeleoperateBin, Args: args}, nil
}

// RecordRequest describes one recording session.
type RecordRequest struct {
	RepoID   string
	Episodes int
	Task     string
	Resume   bool
}

// Defaults applied by RecordArgs to empty request fields.
const (
	DefaultEpisodes = 5
	DefaultTask     = "generic task"
)

// ParseEpisodes parses the episode count typed by the user; empty means the default.
func ParseEpisodes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultEpisodes, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid episode count %q", s)
	}
	return n, nil
}

// RecordArgs builds the recording command.
func (s Settings) RecordArgs(cfg config.Config, req RecordRequest) (Command, error) {
	leader, follower, err := ports(cfg)
	if err != nil {
		return Command{}, err
	}
	if req.RepoID == "" {
		return Command{}, errors.New("dataset repo id is required")
	}
	if req.Episodes <= 0 {
		req.Episodes = DefaultEpisodes
	}
	if strings.TrimSpace(req.Task) == "" {
		req.Task = DefaultTask
	}

	args := s.robotArgs(follower, cfg.Get(config.KeyRobotCameras, NoCameras))
	args = append(args, s.teleopArgs(leader)...)
	args = append(args,
		"--display_data="+strconv.FormatBool(s.DisplayData),
		"--dataset.repo_id="+req.RepoID,
		"--dataset.num_episodes="+strconv.Itoa(req.Episodes),
		"--dataset.single_task="+req.Task,
		"--resume="+strconv.FormatBool(req.Resume),
	)
	return Command{Name: RecordBin, Args: args}, nil
}

// RepoID joins a hub namespace and dataset name.
func RepoID(namespace, name string) string {
	return namespace + "/" + name
}

// pyBool renders a boolean the way the teleoperate entrypoint documents it.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
