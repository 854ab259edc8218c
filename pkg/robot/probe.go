package robot

import (
	"context"
	"fmt"
	"time"
)

// BaudRate of the SO-101 servo bus.
const BaudRate = 1_000_000

// ProbeResult describes what answered on a port.
type ProbeResult struct {
	Port     string
	ServoIDs []int
}

// IsSOArm reports whether the six SO-101 servos (IDs 1-6) all answered.
func (r ProbeResult) IsSOArm() bool {
	return isSOArm(r.ServoIDs)
}

// Probe scans the bus on port for servos with IDs 1-6. It does not move or
// enable any servo.
func Probe(ctx context.Context, port string) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	bus, err := openBus(port, 100*time.Millisecond)
	if err != nil {
		return ProbeResult{Port: port}, err
	}
	defer bus.Close()

	servos, err := bus.Scan(ctx, 1, 6)
	if err != nil {
		return ProbeResult{Port: port}, fmt.Errorf("scan servos: %w", err)
	}

	res := ProbeResult{Port: port}
	for _, s := range servos {
		res.ServoIDs = append(res.ServoIDs, s.ID)
	}
	return res, nil
}

func isSOArm(ids []int) bool {
	if len(ids) != 6 {
		return false
	}

	seen := make(map[int]bool)
	for _, id := range ids {
		seen[id] = true
	}

	for i := 1; i <= 6; i++ {
		if !seen[i] {
			return false
		}
	}

	return true
}
