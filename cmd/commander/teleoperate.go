package main

import (
	"context"
	"fmt"

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/dispatch"
)

type TeleoperateCommand struct{}

func (c *TeleoperateCommand) Execute(args []string) error {
	return aborted(newApp().teleoperate(rootCtx))
}

func (a *app) teleoperate(ctx context.Context) error {
	printHeader("Teleoperate Robot")

	cmd, err := a.settings.TeleoperateArgs(a.cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Leader:   %s\n", a.cfg.Describe(config.KeyLeaderPort))
	fmt.Printf("Follower: %s\n", a.cfg.Describe(config.KeyFollowerPort))
	fmt.Printf("Cameras:  %s\n", a.cfg.Get(config.KeyRobotCameras, dispatch.NoCameras))
	fmt.Println()

	if err := waitForUser("Start teleoperation?", "Press Enter to START (Ctrl+C to stop)"); err != nil {
		return err
	}

	printOutcome(a.runner.Run(ctx, cmd), "Teleoperation")
	return nil
}
