package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"

	"github.com/lehungry-robotum/commander/pkg/augment"
	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/llm"
)

type Options struct {
	Repo        string  `long:"repo" description:"Dataset repo id to augment (asked when omitted)"`
	Namespace   string  `long:"namespace" env:"LEROBOT_NAMESPACE" default:"lehungry-robotum" description:"Hub namespace of locally recorded datasets"`
	TextColumn  string  `long:"text-column" default:"single_task" description:"Column receiving the task text"`
	Variants    int     `long:"variants" default:"3" description:"Paraphrases requested per task"`
	Yes         bool    `short:"y" long:"yes" description:"Accept all generated variants and confirm every prompt"`
	Strict      bool    `long:"strict" description:"Fail on rows whose task index has no description instead of using a placeholder"`
	Model       string  `long:"model" default:"gpt-3.5-turbo" description:"Chat completion model"`
	BaseURL     string  `long:"base-url" env:"OPENAI_BASE_URL" description:"Chat completion API base URL"`
	Rate        float64 `long:"rate" default:"0" description:"Maximum completion requests per second (0 for no limit)"`
	Concurrency int     `long:"concurrency" default:"4" description:"Parallel completion requests with --yes"`
	Secrets     string  `long:"secrets" default:".secrets" description:"File holding OPENAI_API_KEY and HF_TOKEN"`
	OutSuffix   string  `long:"out-suffix" default:"-augmented" description:"Suffix of the published repo id"`
	OutDir      string  `long:"out-dir" description:"Directory for the augmented files (a temporary directory when omitted)"`
	Private     bool    `long:"private" description:"Create the published repo as private"`
	Verbose     bool    `short:"v" long:"verbose" description:"Show debug logs"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Augment a recorded dataset with paraphrased task descriptions and publish it."

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "augment"})
	if opts.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, logger)
	switch {
	case err == nil:
	case errors.Is(err, huh.ErrUserAborted), errors.Is(err, context.Canceled):
		fmt.Println("\nExiting...")
	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger) error {
	secrets, err := config.LoadSecrets(opts.Secrets)
	if err != nil {
		printCritical("Secrets file '%s' not found or unreadable.", opts.Secrets)
		fmt.Println("    Please create this file and add your OPENAI_API_KEY and HF_TOKEN.")
		return err
	}
	warnings, err := secrets.Validate()
	if err != nil {
		printCritical("OPENAI_API_KEY is missing or invalid in '%s'.", opts.Secrets)
		return err
	}
	for _, w := range warnings {
		printWarning("%s", w)
	}

	paraphraser, err := llm.New(llm.Options{
		APIKey:            secrets.OpenAIKey,
		BaseURL:           opts.BaseURL,
		Model:             opts.Model,
		RequestsPerSecond: opts.Rate,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	fallback := augment.Placeholder
	if opts.Strict {
		fallback = augment.Strict
	}

	job := &job{
		logger:  logger,
		secrets: secrets,
		gen:     paraphraser,
		options: augment.Options{
			TextColumn:  opts.TextColumn,
			Fallback:    fallback,
			Variants:    opts.Variants,
			Concurrency: opts.Concurrency,
			Logger:      logger,
		},
		yes:       opts.Yes,
		namespace: opts.Namespace,
		outSuffix: opts.OutSuffix,
		outDir:    opts.OutDir,
		private:   opts.Private,
	}
	return job.run(ctx, opts.Repo)
}
