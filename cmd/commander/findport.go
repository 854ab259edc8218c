package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/portfind"
	"github.com/lehungry-robotum/commander/pkg/robot"
)

type FindPortCommand struct{}

func (c *FindPortCommand) Execute(args []string) error {
	return aborted(newApp().findPort(rootCtx))
}

// formPrompter asks the user to act on the USB cable.
type formPrompter struct{}

func (formPrompter) Confirm(step portfind.Step) error {
	switch step {
	case portfind.StepPlugged:
		return waitForUser("1. Ensure your device is currently PLUGGED IN.", "Press Enter to continue")
	case portfind.StepUnplug:
		return waitForUser("2. UNPLUG the USB cable now.", "Press Enter when unplugged")
	default:
		return waitForUser("3. Please RECONNECT the USB cable now.", "Press Enter when reconnected")
	}
}

func (a *app) findPort(ctx context.Context) error {
	printHeader("Find Port")

	d := &portfind.Detector{
		Lister:   a.lister,
		Prompter: formPrompter{},
		WatchDir: a.watchDir,
		Logger:   a.logger,
	}
	res, err := d.Detect(ctx)
	if err != nil {
		return err
	}

	switch res.Status {
	case portfind.NoneRemoved:
		printWarning("No port disappearance detected. Did you unplug it?")
		return nil
	case portfind.Ambiguous:
		printWarning("Multiple ports disappeared: %s", strings.Join(res.Removed, ", "))
		return nil
	}

	fmt.Println(successStyle.Render("---> Detected Port: " + res.Port))
	if details := portfind.Details(res.Port); details != "" {
		fmt.Println(dimStyle.Render("     " + details))
	}
	a.describeArm(ctx, res.Port)

	key, err := assignRole(res.Port)
	if err != nil || key == "" {
		return err
	}

	a.cfg[key] = res.Port
	if err := a.store.Save(a.cfg); err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("[%s] set to %s", config.RoleTitle(key), res.Port)))
	fmt.Printf("Saved to %s and %s\n", a.store.Path, a.store.EnvPath)
	return nil
}

// describeArm reports whether an SO-101 answers on the reconnected port.
func (a *app) describeArm(ctx context.Context, port string) {
	probe, err := robot.Probe(ctx, port)
	if err != nil {
		a.logger.Debug("probe failed", "port", port, "err", err)
		return
	}
	if probe.IsSOArm() {
		fmt.Println(dimStyle.Render("     SO-101 arm answered (servos 1-6)"))
		return
	}
	a.logger.Debug("not an SO-101 arm", "port", port, "servos", probe.ServoIDs)
}

// assignRole returns the config key for port, or "" when cancelled.
func assignRole(port string) (string, error) {
	var key string
	err := huh.NewSelect[string]().
		Title(fmt.Sprintf("Assign '%s' to:", port)).
		Options(
			huh.NewOption("Leader (Teleop Arm)", config.KeyLeaderPort),
			huh.NewOption("Follower (Robot Arm)", config.KeyFollowerPort),
			huh.NewOption("Cancel", ""),
		).
		Value(&key).
		Run()
	return key, err
}
