package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/huh"
)

type menuItem struct {
	key   string
	label string
	run   func(a *app, ctx context.Context) error
}

var menuItems = []menuItem{
	{"1", "Find Port", (*app).findPort},
	{"2", "Calibrate Robot", (*app).calibrate},
	{"3", "Teleoperate", (*app).teleoperate},
	{"4", "Record Dataset", (*app).record},
	{"5", "Monitor Arm", func(a *app, ctx context.Context) error { return a.monitor(ctx, defaultMonitorHz) }},
}

const quitKey = "q"

func (a *app) menu(ctx context.Context) error {
	for {
		fmt.Println()
		fmt.Println(headerStyle.Render("LE ROBOT CLI COMMANDER"))
		fmt.Println(renderStatus(a.cfg))

		options := make([]huh.Option[string], 0, len(menuItems)+1)
		for _, item := range menuItems {
			options = append(options, huh.NewOption(item.key+". "+item.label, item.key))
		}
		options = append(options, huh.NewOption(quitKey+". Quit", quitKey))

		var choice string
		err := huh.NewSelect[string]().
			Title("Select an option").
			Options(options...).
			Value(&choice).
			Run()
		if err != nil {
			return aborted(err)
		}

		if choice == quitKey {
			fmt.Println("Exiting...")
			return nil
		}

		for _, item := range menuItems {
			if item.key != choice {
				continue
			}
			// Ctrl+C ends the operation, not the menu
			opCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
			err := item.run(a, opCtx)
			stop()
			if err != nil {
				if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
					fmt.Println(dimStyle.Render("Cancelled."))
					continue
				}
				printError(err)
			}
		}
	}
}
