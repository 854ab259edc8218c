package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/lehungry-robotum/commander/pkg/dataset"
	"github.com/lehungry-robotum/commander/pkg/dispatch"
	"github.com/lehungry-robotum/commander/pkg/hub"
)

type RecordCommand struct{}

func (c *RecordCommand) Execute(args []string) error {
	return aborted(newApp().record(rootCtx))
}

const (
	choiceNew    = "new"
	choiceCancel = "cancel"
	resumePrefix = "resume/"
)

func (a *app) record(ctx context.Context) error {
	printHeader("Record Dataset")

	// Fail before asking anything when the ports are missing.
	if _, err := a.settings.TeleoperateArgs(a.cfg); err != nil {
		return err
	}

	req, ok, err := a.askRecording()
	if err != nil || !ok {
		return err
	}

	cmd, err := a.settings.RecordArgs(a.cfg, req)
	if err != nil {
		return err
	}

	fmt.Println(dimStyle.Render("-------------------------------------------"))
	fmt.Printf("Repo ID:  %s\n", req.RepoID)
	fmt.Printf("Task:     %s\n", req.Task)
	fmt.Printf("Episodes: %d\n", req.Episodes)
	fmt.Printf("Resume:   %t\n", req.Resume)
	fmt.Println(dimStyle.Render("-------------------------------------------"))

	if err := waitForUser("Start recording?", "Press Enter to START (Ctrl+C to stop)"); err != nil {
		return err
	}

	recorder := &dispatch.Recorder{
		Runner:  a.runner,
		Tagger:  hub.New(hub.ResolveToken(), a.logger),
		Version: dispatch.ToolkitVersion(a.python),
	}
	res := recorder.Record(ctx, cmd, req)
	printOutcome(res.Outcome, "Recording")

	switch {
	case res.Tagged():
		fmt.Println(successStyle.Render(fmt.Sprintf("[TAGGING] Successfully tagged %s with %s", req.RepoID, res.Tag)))
	case res.TagErr != nil:
		printWarning("[TAGGING] Failed to create tag. Error: %v", res.TagErr)
	}
	return nil
}

// askRecording collects the dataset, task and episode count.
func (a *app) askRecording() (dispatch.RecordRequest, bool, error) {
	existing, err := dataset.LocalDatasets(a.cacheRoot, a.namespace)
	if err != nil {
		a.logger.Warn("cannot list local datasets", "err", err)
	}

	options := make([]huh.Option[string], 0, len(existing)+2)
	for _, name := range existing {
		options = append(options, huh.NewOption(fmt.Sprintf("Resume '%s'", name), resumePrefix+name))
	}
	options = append(options,
		huh.NewOption("Create NEW dataset", choiceNew),
		huh.NewOption("Cancel", choiceCancel),
	)

	var choice string
	if err := huh.NewSelect[string]().
		Title("Select dataset").
		Options(options...).
		Value(&choice).
		Run(); err != nil {
		return dispatch.RecordRequest{}, false, err
	}
	if choice == choiceCancel {
		return dispatch.RecordRequest{}, false, nil
	}

	var req dispatch.RecordRequest
	name, resume := strings.CutPrefix(choice, resumePrefix)
	if resume {
		req.Resume = true
	} else {
		name = ""
	}

	var task, episodes string
	var fields []huh.Field
	if !req.Resume {
		fields = append(fields, huh.NewInput().
			Title("Enter NEW dataset name").
			Placeholder("my_task_test").
			Value(&name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("name cannot be empty")
				}
				if strings.Contains(s, "/") {
					return errors.New("name cannot contain '/'")
				}
				return nil
			}))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Enter task description").
			Placeholder("grab tape").
			Value(&task),
		huh.NewInput().
			Title("Number of episodes").
			Placeholder(strconv.Itoa(dispatch.DefaultEpisodes)).
			Value(&episodes).
			Validate(func(s string) error {
				_, err := dispatch.ParseEpisodes(s)
				return err
			}),
	)

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return dispatch.RecordRequest{}, false, err
	}

	req.RepoID = dispatch.RepoID(a.namespace, strings.TrimSpace(name))
	req.Task = strings.TrimSpace(task)
	req.Episodes, _ = dispatch.ParseEpisodes(episodes)
	if req.Task == "" {
		req.Task = dispatch.DefaultTask
	}
	return req, true, nil
}
