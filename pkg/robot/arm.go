package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// openBus opens the STS servo bus on port. A zero timeout keeps the driver
// default.
func openBus(port string, timeout time.Duration) (*feetech.Bus, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", port, err)
	}
	return bus, nil
}

// Arm reads joint positions from a calibrated arm. Torque is never touched,
// so the arm can be moved by hand while it is observed.
type Arm struct {
	Port string

	bus   *feetech.Bus
	group *feetech.ServoGroup
	cal   Calibration
}

func NewArm(port string, cal Calibration) (*Arm, error) {
	if len(cal) == 0 {
		return nil, fmt.Errorf("arm on %s: empty calibration", port)
	}
	bus, err := openBus(port, 0)
	if err != nil {
		return nil, err
	}
	return &Arm{
		Port:  port,
		bus:   bus,
		group: feetech.NewServoGroupByIDs(bus, cal.MotorIDs()...),
		cal:   cal,
	}, nil
}

func (a *Arm) Close() error {
	return a.bus.Close()
}

// ReadPositions sync-reads every calibrated motor and normalizes each value
// to its joint range (see MotorName.Range). IDs missing from the
// calibration are ignored.
func (a *Arm) ReadPositions(ctx context.Context) (map[MotorName]float64, error) {
	raw, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions on %s: %w", a.Port, err)
	}

	out := make(map[MotorName]float64, len(raw))
	for id, value := range raw {
		if name, mc, ok := a.cal.ByID(id); ok {
			out[name] = mc.Normalize(name, value)
		}
	}
	return out, nil
}
