package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/dispatch"
	"github.com/lehungry-robotum/commander/pkg/robot"
)

type CalibrateCommand struct {
	Role string `long:"role" choice:"leader" choice:"follower" description:"Arm to calibrate (asked when omitted)"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	a := newApp()
	if c.Role == "" {
		return aborted(a.calibrate(rootCtx))
	}
	return aborted(a.calibrateRole(rootCtx, robot.Role(c.Role)))
}

// selectRole asks for an arm; ok is false when the user cancels.
func selectRole(title string) (role robot.Role, ok bool, err error) {
	var choice string
	err = huh.NewSelect[string]().
		Title(title).
		Options(
			huh.NewOption("Leader (Teleop)", string(robot.Leader)),
			huh.NewOption("Follower (Robot)", string(robot.Follower)),
			huh.NewOption("Cancel", ""),
		).
		Value(&choice).
		Run()
	return robot.Role(choice), choice != "", err
}

func (a *app) calibrate(ctx context.Context) error {
	printHeader("Calibrate Robot")

	role, ok, err := selectRole("Select robot to calibrate")
	if err != nil || !ok {
		return err
	}
	return a.calibrateRole(ctx, role)
}

func (a *app) calibrateRole(ctx context.Context, role robot.Role) error {
	cmd, err := a.settings.CalibrateArgs(a.cfg, role)
	if err != nil {
		return err
	}

	port := a.cfg.Get(config.KeyLeaderPort, "")
	if role == robot.Follower {
		port = a.cfg.Get(config.KeyFollowerPort, "")
	}
	fmt.Printf("Calibrating %s on %s...\n", strings.ToUpper(string(role)), port)

	out := a.runner.Run(ctx, cmd)
	printOutcome(out, "Calibration")
	if out.Status == dispatch.Succeeded {
		a.reportCalibration(role)
	}
	return nil
}

// reportCalibration shows where the toolkit stored the calibration.
func (a *app) reportCalibration(role robot.Role) {
	deviceType, id := a.settings.DeviceType(role)
	path := robot.CalibrationPath(a.cacheRoot, role, deviceType, id)

	cal, err := robot.LoadCalibration(path)
	if err != nil {
		a.logger.Warn("calibration file not readable", "path", path, "err", err)
		return
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("Calibration for %d motors saved to %s", len(cal), path)))
}
