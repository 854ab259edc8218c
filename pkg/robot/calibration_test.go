package robot

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMotorCalibration_Normalize(t *testing.T) {
	cal := MotorCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{1000, -100.0}, // min -> -100
		{3000, 100.0},  // max -> 100
		{2000, 0.0},    // mid -> 0
		{1500, -50.0},  // quarter -> -50
		{2500, 50.0},   // three-quarter -> 50
		{500, -100.0},  // below range clamps
		{3500, 100.0},  // above range clamps
	}

	for _, tt := range tests {
		got := cal.Normalize(ElbowFlex, tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestMotorCalibration_NormalizeGripper(t *testing.T) {
	cal := MotorCalibration{RangeMin: 2000, RangeMax: 3000}

	tests := []struct {
		raw      int
		expected float64
	}{
		{2000, 0},
		{2500, 50},
		{3000, 100},
	}

	for _, tt := range tests {
		got := cal.Normalize(Gripper, tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(gripper, %d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestMotorCalibration_NormalizeInverted(t *testing.T) {
	cal := MotorCalibration{RangeMin: 1000, RangeMax: 3000, DriveMode: 1}

	if got := cal.Normalize(WristRoll, 1000); math.Abs(got-100) > 0.001 {
		t.Errorf("inverted Normalize(min) = %f, want 100", got)
	}
}

func TestMotorCalibration_NormalizeEmptyRange(t *testing.T) {
	cal := MotorCalibration{RangeMin: 100, RangeMax: 100}
	if got := cal.Normalize(ShoulderPan, 100); got != 0 {
		t.Errorf("Normalize on empty range = %f, want 0", got)
	}
}

func TestCalibration_MotorIDs(t *testing.T) {
	cal := Calibration{
		ShoulderPan:  MotorCalibration{ID: 1},
		ShoulderLift: MotorCalibration{ID: 2},
		ElbowFlex:    MotorCalibration{ID: 3},
		WristFlex:    MotorCalibration{ID: 4},
		WristRoll:    MotorCalibration{ID: 5},
		Gripper:      MotorCalibration{ID: 6},
	}

	ids := cal.MotorIDs()
	expected := []int{1, 2, 3, 4, 5, 6}

	if len(ids) != len(expected) {
		t.Fatalf("MotorIDs returned %d IDs, want %d", len(ids), len(expected))
	}

	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("MotorIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		ShoulderPan: MotorCalibration{ID: 1, RangeMin: 100, RangeMax: 200},
		Gripper:     MotorCalibration{ID: 6, RangeMin: 300, RangeMax: 400},
	}

	name, mc, ok := cal.ByID(1)
	if !ok {
		t.Fatal("ByID(1) returned false")
	}
	if name != ShoulderPan {
		t.Errorf("ByID(1) returned name %s, want shoulder_pan", name)
	}
	if mc.RangeMin != 100 {
		t.Errorf("ByID(1) returned wrong calibration: %+v", mc)
	}

	_, _, ok = cal.ByID(99)
	if ok {
		t.Error("ByID(99) should return false")
	}
}

func TestCalibrationPath(t *testing.T) {
	got := CalibrationPath("/cache", Leader, "so101_leader", "Leader")
	want := filepath.Join("/cache", "calibration", "teleoperators", "so101_leader", "Leader.json")
	if got != want {
		t.Errorf("CalibrationPath(leader) = %s, want %s", got, want)
	}

	got = CalibrationPath("/cache", Follower, "so101_follower", "Follower")
	want = filepath.Join("/cache", "calibration", "robots", "so101_follower", "Follower.json")
	if got != want {
		t.Errorf("CalibrationPath(follower) = %s, want %s", got, want)
	}
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Leader.json")
	data := `{
    "shoulder_pan": {"id": 1, "drive_mode": 0, "homing_offset": -1220, "range_min": 758, "range_max": 3292},
    "gripper": {"id": 6, "drive_mode": 0, "homing_offset": 1403, "range_min": 1952, "range_max": 3371}
}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if len(cal) != 2 {
		t.Fatalf("loaded %d motors, want 2", len(cal))
	}
	if cal[Gripper].RangeMax != 3371 || cal[ShoulderPan].HomingOffset != -1220 {
		t.Errorf("unexpected calibration: %+v", cal)
	}

	if _, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadCalibration on missing file should fail")
	}
}

func TestProbeResult_IsSOArm(t *testing.T) {
	tests := []struct {
		ids  []int
		want bool
	}{
		{[]int{1, 2, 3, 4, 5, 6}, true},
		{[]int{6, 5, 4, 3, 2, 1}, true},
		{[]int{1, 2, 3, 4, 5}, false},
		{[]int{1, 1, 2, 3, 4, 5}, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := (ProbeResult{ServoIDs: tt.ids}).IsSOArm(); got != tt.want {
			t.Errorf("IsSOArm(%v) = %v, want %v", tt.ids, got, tt.want)
		}
	}
}
