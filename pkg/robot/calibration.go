package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MotorCalibration holds calibration data for a single motor, in the layout
// written by lerobot-calibrate.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Calibration holds calibration data for all motors, keyed by motor name.
type Calibration map[MotorName]MotorCalibration

// Role is the part an arm plays.
type Role string

const (
	Leader   Role = "leader"
	Follower Role = "follower"
)

// CalibrationPath returns where lerobot-calibrate stores the calibration for
// an arm of the given device type and id, e.g.
// <root>/calibration/teleoperators/so101_leader/Leader.json.
func CalibrationPath(root string, role Role, deviceType, id string) string {
	kind := "robots"
	if role == Leader {
		kind = "teleoperators"
	}
	return filepath.Join(root, "calibration", kind, deviceType, id+".json")
}

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw map[string]MotorCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, mc := range raw {
		cal[MotorName(name)] = mc
	}

	return cal, nil
}

// Normalize converts a raw servo position to the motor's normalized range:
// [0, 100] for the gripper and [-100, 100] for every other joint.
func (c MotorCalibration) Normalize(name MotorName, raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	if raw < c.RangeMin {
		raw = c.RangeMin
	}
	if raw > c.RangeMax {
		raw = c.RangeMax
	}
	frac := float64(raw-c.RangeMin) / rangeSize
	if c.DriveMode != 0 {
		frac = 1 - frac
	}
	lo, hi := name.Range()
	return lo + frac*(hi-lo)
}

// MotorIDs returns the servo IDs for all motors in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllMotors() to ensure consistent ordering
	for _, name := range AllMotors() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns motor name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (MotorName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}
