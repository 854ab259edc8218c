package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lehungry-robotum/commander/pkg/augment"
	"github.com/lehungry-robotum/commander/pkg/dataset"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func printHeader(title string) {
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ " + title + " ━━━"))
}

func printWarning(format string, args ...any) {
	fmt.Println(warningStyle.Render("[!] WARNING: " + fmt.Sprintf(format, args...)))
}

func printCritical(format string, args ...any) {
	fmt.Println(errorStyle.Render("[!] CRITICAL ERROR: " + fmt.Sprintf(format, args...)))
}

func confirm(title string) (bool, error) {
	ok := true
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

const customRepo = "custom"

// selectDataset lists the locally recorded datasets of namespace and returns
// the chosen repo id, or one typed by the user.
func selectDataset(namespace string) (string, error) {
	names, err := dataset.LocalDatasets(dataset.CacheRoot(), namespace)
	if err != nil {
		return "", err
	}

	options := make([]huh.Option[string], 0, len(names)+1)
	for _, name := range names {
		id := namespace + "/" + name
		options = append(options, huh.NewOption(id, id))
	}
	options = append(options, huh.NewOption("Enter custom Repo ID", customRepo))

	var repoID string
	if err := huh.NewSelect[string]().
		Title("Select Dataset to Augment").
		Options(options...).
		Value(&repoID).
		Run(); err != nil {
		return "", err
	}
	if repoID != customRepo {
		return repoID, nil
	}

	err = huh.NewInput().
		Title("Enter full Repo ID").
		Placeholder("user/dataset").
		Value(&repoID).
		Validate(func(s string) error {
			ns, name, ok := strings.Cut(strings.TrimSpace(s), "/")
			if !ok || ns == "" || name == "" {
				return fmt.Errorf("expected <namespace>/<name>")
			}
			return nil
		}).
		Run()
	return strings.TrimSpace(repoID), err
}

// spinnerGenerator shows a spinner while variants are generated.
type spinnerGenerator struct {
	gen augment.Generator
}

func (s spinnerGenerator) Paraphrase(ctx context.Context, task string, n int) ([]string, error) {
	var variants []string
	err := withSpinner(ctx, "Generating variations...", func() error {
		var err error
		variants, err = s.gen.Paraphrase(ctx, task, n)
		return err
	})
	return variants, err
}

// formReviewer presents variants and asks to accept, reject or retry.
type formReviewer struct{}

func (formReviewer) Review(ctx context.Context, r *augment.Review, genErr error) (augment.Decision, error) {
	fmt.Printf("\nTask [%d]: '%s'", r.TaskID, r.Original)
	if r.Attempts > 1 {
		fmt.Print(dimStyle.Render(fmt.Sprintf(" (attempt %d)", r.Attempts)))
	}
	fmt.Println()

	if genErr != nil {
		printWarning("Error generating augmentation for '%s': %v", r.Original, genErr)
	}
	fmt.Println("Proposed variations:")
	if len(r.Variants) == 0 {
		fmt.Println(dimStyle.Render(" (none)"))
	}
	for _, v := range r.Variants {
		fmt.Printf(" - %s\n", v)
	}

	answer := "y"
	err := huh.NewSelect[string]().
		Title("Accept these variations?").
		Options(
			huh.NewOption("Yes", "y"),
			huh.NewOption("No (use original only)", "n"),
			huh.NewOption("Retry", "r"),
		).
		Value(&answer).
		Run()
	if err != nil {
		return augment.Reject, err
	}

	d := augment.Decide(answer)
	if d == augment.Reject {
		fmt.Println(dimStyle.Render("Skipping variations for this task (using original only)."))
	}
	return d, nil
}

// renderSummary tabulates the texts each task will be expanded to.
func renderSummary(mapping augment.Mapping, cache augment.Cache) string {
	var rows [][]string
	for _, id := range augment.SortedIDs(mapping) {
		texts := cache[id]
		variants := ""
		if len(texts) > 1 {
			variants = strings.Join(texts[1:], "\n")
		}
		rows = append(rows, []string{strconv.FormatInt(id, 10), mapping[id], variants, strconv.Itoa(len(texts))})
	}

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Task", "Original", "Variants", "Rows/frame").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Render()
}
