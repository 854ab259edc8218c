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

	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/dataset"
	"github.com/lehungry-robotum/commander/pkg/dispatch"
	"github.com/lehungry-robotum/commander/pkg/portfind"
)

type Options struct {
	Config    string `long:"config" default:"config.json" description:"Configuration file"`
	EnvFile   string `long:"env-file" default:".env" description:"Shell variable file written alongside the configuration"`
	Namespace string `long:"namespace" env:"LEROBOT_NAMESPACE" default:"lehungry-robotum" description:"Hub namespace of recorded datasets"`
	Python    string `long:"python" default:"python3" description:"Python interpreter the toolkit is installed in"`
	Watch     string `long:"watch" default:"/dev" description:"Directory watched for device removal while finding ports (empty to disable)"`
	Verbose   bool   `short:"v" long:"verbose" description:"Show debug logs"`

	FindPort    FindPortCommand    `command:"find-port" description:"Detect a port by unplugging its device"`
	Calibrate   CalibrateCommand   `command:"calibrate" description:"Calibrate the leader or follower arm"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Start teleoperation"`
	Record      RecordCommand      `command:"record" description:"Record a dataset"`
	Monitor     MonitorCommand     `command:"monitor" description:"Show live joint positions of an arm"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// rootCtx is cancelled by Ctrl+C while a subcommand runs.
var rootCtx = context.Background()

func main() {
	parser.LongDescription = "LeRobot CLI commander - find ports, calibrate, teleoperate and record with SO-101 arms.\n\nWithout a command, an interactive menu is shown."
	parser.SubcommandsOptional = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	rootCtx = ctx
	_, err := parser.Parse()
	stop()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if parser.Active == nil {
		if err := newApp().menu(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
	}
}

// aborted maps a cancelled form or an interrupt to a clean exit.
func aborted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
		fmt.Println("\nExiting...")
		return nil
	}
	return err
}

// app carries what every menu operation needs.
type app struct {
	store     *config.Store
	cfg       config.Config
	settings  dispatch.Settings
	runner    dispatch.Runner
	logger    *log.Logger
	namespace string
	python    string
	cacheRoot string
	watchDir  string
	lister    portfind.Lister
}

func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "commander"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func newApp() *app {
	logger := newLogger(opts.Verbose)
	store := &config.Store{Path: opts.Config, EnvPath: opts.EnvFile}

	cfg, err := store.LoadErr()
	if err != nil {
		logger.Warn("ignoring configuration", "err", err)
	}

	return &app{
		store:     store,
		cfg:       cfg,
		settings:  dispatch.DefaultSettings,
		runner:    dispatch.NewExecRunner(logger),
		logger:    logger,
		namespace: opts.Namespace,
		python:    opts.Python,
		cacheRoot: dataset.CacheRoot(),
		watchDir:  opts.Watch,
		lister:    portfind.SerialLister{},
	}
}
