// Package robot reads SO-101 arms over their servo bus and loads the
// calibration files produced by the toolkit.
package robot

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the SO-101 arm.
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all motor names in order (matching servo IDs 1-6).
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// Range returns the normalized position range of the motor.
func (m MotorName) Range() (lo, hi float64) {
	if m == Gripper {
		return 0, 100
	}
	return -100, 100
}
