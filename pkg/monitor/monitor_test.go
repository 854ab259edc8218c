package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehungry-robotum/commander/pkg/robot"
)

type fakeArm struct {
	reads atomic.Int32
	err   error
}

func (f *fakeArm) ReadPositions(ctx context.Context) (map[robot.MotorName]float64, error) {
	n := f.reads.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return map[robot.MotorName]float64{robot.Gripper: float64(n)}, nil
}

func TestController_PublishesLatestState(t *testing.T) {
	arm := &fakeArm{}
	c := NewController(arm, Config{Name: "Leader", Hz: 200})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case s := <-c.States():
		require.NoError(t, s.Error)
		assert.Contains(t, s.Positions, robot.Gripper)
	case <-time.After(2 * time.Second):
		t.Fatal("no state received")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestController_ReportsReadErrors(t *testing.T) {
	arm := &fakeArm{err: errors.New("bus timeout")}
	c := NewController(arm, Config{Name: "Follower", Hz: 200})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	select {
	case s := <-c.States():
		assert.EqualError(t, s.Error, "bus timeout")
		assert.Nil(t, s.Positions)
	case <-time.After(2 * time.Second):
		t.Fatal("no state received")
	}
}

func TestController_StartTwice(t *testing.T) {
	c := NewController(&fakeArm{}, Config{Hz: 100})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.running
	}, time.Second, time.Millisecond)

	assert.Error(t, c.Start(ctx))
}

func TestNewController_DefaultHz(t *testing.T) {
	c := NewController(&fakeArm{}, Config{})
	assert.Equal(t, 30, c.Hz())
}
