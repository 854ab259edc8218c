// Package monitor polls the joint positions of a single arm.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lehungry-robotum/commander/pkg/robot"
)

// State is one reading of the arm.
type State struct {
	Positions map[robot.MotorName]float64
	Timestamp time.Time
	Error     error
}

// PositionReader reads normalized joint positions.
type PositionReader interface {
	ReadPositions(ctx context.Context) (map[robot.MotorName]float64, error)
}

// Controller runs the polling loop. It never enables torque, so the arm
// stays free to move by hand while it is monitored.
type Controller struct {
	arm  PositionReader
	name string
	hz   int

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the controller.
type Config struct {
	Name string // shown in log lines, e.g. "Leader"
	Hz   int
}

// NewController creates a controller polling arm.
func NewController(arm PositionReader, cfg Config) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = 30
	}
	return &Controller{
		arm:     arm,
		name:    cfg.Name,
		hz:      cfg.Hz,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that receives the latest reading.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the polling frequency.
func (c *Controller) Hz() int {
	return c.hz
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start polls until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("already running")
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.log("Monitoring %s arm at %d Hz", c.name, c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log("Monitoring stopped")
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	positions, err := c.arm.ReadPositions(ctx)
	if err != nil {
		c.log("Read error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}

	c.sendState(State{
		Positions: positions,
		Timestamp: time.Now(),
	})
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}
