package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/Veraticus/activity-detector/pkg/config"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// options holds the command line flags
type options struct {
	configPath   string
	timeToIdle   string
	initialState string
	listen       string
	watch        []string
	logLevel     string
	quiet        bool
	help         bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("activity-detector", flag.ContinueOnError)
	// The first positional argument starts the wrapped command
	fs.SetInterspersed(false)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (.yaml, .yml or .toml)")
	fs.StringVar(&opts.timeToIdle, "time-to-idle", "", "Inactivity period before going idle (e.g. 30s, 5m)")
	fs.StringVar(&opts.initialState, "initial-state", "", "State to start in: active or idle")
	fs.StringVar(&opts.listen, "listen", "", "Websocket bridge address, e.g. 127.0.0.1:7070")
	fs.StringSliceVar(&opts.watch, "watch", nil, "Directories whose changes count as activity (repeatable)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Disable all notifications")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show help message")

	return fs
}

func run(argv []string) int {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(argv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if opts.help {
		printUsage(fs)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if err := applyFlags(cfg, fs, &opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	var command string
	var args []string
	if rest := fs.Args(); len(rest) > 0 {
		command, args = rest[0], rest[1:]
	}

	logPath := cfg.Log.File
	if logPath == "" && command != "" {
		// stderr belongs to the wrapped program
		logPath = defaultLogPath()
	}
	logger, err := logging.NewLogger(logPath, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Close() }()

	deps, err := NewDependencies(cfg, logger, command != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating dependencies: %v\n", err)
		return 1
	}
	defer deps.Close()

	app := NewApplication(deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ensure terminal restoration on panic
	defer func() {
		if r := recover(); r != nil {
			_ = app.Stop() // Best effort terminal restoration
			panic(r)
		}
	}()

	if err := app.Run(ctx, command, args); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			logger.Error("run failed", "error", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if app.ExitCode() == 0 {
				return 1
			}
		}
	}

	return app.ExitCode()
}

// applyFlags overrides cfg with every flag given on the command line and
// validates the result.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, opts *options) error {
	if fs.Changed("time-to-idle") {
		d, err := time.ParseDuration(opts.timeToIdle)
		if err != nil {
			return fmt.Errorf("invalid --time-to-idle: %w", err)
		}
		cfg.TimeToIdle = d
	}
	if fs.Changed("initial-state") {
		cfg.InitialState = opts.initialState
	}
	if fs.Changed("listen") {
		cfg.Bridge.Listen = opts.listen
	}
	if fs.Changed("watch") {
		cfg.Watch.Paths = opts.watch
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if fs.Changed("quiet") {
		cfg.Quiet = opts.quiet
	}

	return cfg.Validate()
}

// defaultLogPath returns the log file used while wrapping a command.
func defaultLogPath() string {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "activity-detector", "activity-detector.log")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "activity-detector", "activity-detector.log")
	}
	return filepath.Join(os.TempDir(), "activity-detector.log")
}

func printUsage(fs *flag.FlagSet) {
	fmt.Println("activity-detector - tracks whether the user is active or idle")
	fmt.Println()
	fmt.Println("Usage: activity-detector [OPTIONS] [--] [COMMAND [ARGS...]]")
	fmt.Println()
	fmt.Println("With a COMMAND, it runs under a pseudo-terminal and your keystrokes and")
	fmt.Println("terminal focus count as activity. Without one it runs until interrupted.")
	fmt.Println()
	fmt.Println("Options:")
	fs.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  ACTIVITY_DETECTOR_CONFIG         Path to config file")
	fmt.Println("  ACTIVITY_DETECTOR_TIME_TO_IDLE   Inactivity period (default: 30s)")
	fmt.Println("  ACTIVITY_DETECTOR_INITIAL_STATE  active or idle (default: active)")
	fmt.Println("  ACTIVITY_DETECTOR_LISTEN         Websocket bridge address")
	fmt.Println("  ACTIVITY_DETECTOR_LOG_LEVEL      Log level (default: info)")
	fmt.Println("  ACTIVITY_DETECTOR_QUIET          Disable notifications (true/false)")
	fmt.Println("  ACTIVITY_DETECTOR_NTFY_TOPIC     Ntfy topic for notifications")
	fmt.Println("  ACTIVITY_DETECTOR_NTFY_SERVER    Ntfy server URL (default: https://ntfy.sh)")
	fmt.Println()
	fmt.Println("Configuration file: ~/.config/activity-detector/config.yaml")
}
