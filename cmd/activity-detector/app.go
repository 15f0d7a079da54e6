package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/Veraticus/activity-detector/pkg/bridge"
	"github.com/Veraticus/activity-detector/pkg/config"
	"github.com/Veraticus/activity-detector/pkg/host"
	"github.com/Veraticus/activity-detector/pkg/idle"
	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
	"github.com/Veraticus/activity-detector/pkg/monitor"
	"github.com/Veraticus/activity-detector/pkg/notification"
	"github.com/Veraticus/activity-detector/pkg/process"
	"github.com/Veraticus/activity-detector/pkg/source"
	"github.com/Veraticus/activity-detector/pkg/status"
)

const statusRefreshInterval = 2 * time.Second

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Logger              *logging.Logger
	Env                 *host.Environment
	Detector            *idle.Detector
	Sources             []source.Source
	Notifier            notification.Notifier
	RateLimiter         interfaces.RateLimiter
	NotificationManager *notification.Manager
	StatusIndicator     *status.Indicator
	InputMonitor        *monitor.InputMonitor
	ProcessManager      *process.Manager
	Bridge              *bridge.Bridge
	stopChan            chan struct{}
}

// NewDependencies creates all dependencies with the given configuration.
// wrapping reports whether a command will run under a PTY.
func NewDependencies(cfg *config.Config, logger *logging.Logger, wrapping bool) (*Dependencies, error) {
	if logger == nil {
		logger = logging.New(io.Discard, cfg.Log.Level, cfg.Log.Format)
	}

	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Env:      host.NewEnvironment(host.RealClock(), logger.WithComponent("loop")),
		stopChan: make(chan struct{}),
	}

	detectorCfg, err := cfg.DetectorConfig()
	if err != nil {
		return nil, err
	}
	deps.Detector, err = idle.New(deps.Env, detectorCfg, idle.WithLogger(logger.WithComponent("detector")))
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	deps.Sources, err = source.Defaults(source.Options{
		WatchPaths: cfg.Watch.Paths,
		Tmux:       cfg.Watch.Tmux,
		Platform:   cfg.Watch.Platform,
	}, logger.WithComponent("source"))
	if err != nil {
		closeSources(deps.Sources)
		return nil, fmt.Errorf("failed to create activity sources: %w", err)
	}

	// The indicator draws on the wrapped program's terminal
	statusEnabled := wrapping && cfg.Status && term.IsTerminal(int(os.Stderr.Fd()))
	deps.StatusIndicator = status.NewIndicator(os.Stderr, statusEnabled)

	if !cfg.Quiet {
		switch {
		case cfg.Notify.Topic != "":
			deps.Notifier = notification.NewNtfyClient(cfg.Notify.Server, cfg.Notify.Topic)
		case !wrapping:
			deps.Notifier = notification.NewStdoutNotifier(os.Stdout)
		}
	}
	if deps.Notifier != nil {
		if cfg.Notify.RateLimit.MaxMessages > 0 {
			deps.RateLimiter = notification.NewWindowRateLimiter(cfg.Notify.RateLimit.MaxMessages, cfg.Notify.RateLimit.Window)
		}
		deps.NotificationManager = notification.NewManager(deps.Notifier, deps.RateLimiter, logger.WithComponent("notification"))
		if statusEnabled && cfg.Notify.Topic != "" {
			deps.NotificationManager.SetStatusReporter(deps.StatusIndicator)
		}
	}

	if wrapping {
		deps.InputMonitor = monitor.NewInputMonitor(deps.Env.Win, logger.WithComponent("input"))
		deps.ProcessManager = process.NewManager(deps.InputMonitor.HandleInput, true, logger.WithComponent("process"))
	}

	if cfg.Bridge.Listen != "" {
		deps.Bridge = bridge.New(deps.Env.Win, deps.Env.Doc, logger.WithComponent("bridge"))
	}

	return deps, nil
}

// Close cleans up all dependencies
func (d *Dependencies) Close() {
	if d.stopChan != nil {
		select {
		case <-d.stopChan:
			// Already closed
		default:
			close(d.stopChan)
		}
	}

	if d.Detector != nil {
		d.Detector.Stop()
	}

	closeSources(d.Sources)

	if d.Bridge != nil {
		d.Bridge.Close()
	}

	if d.StatusIndicator != nil {
		_ = d.StatusIndicator.Clear() // Best effort
	}
}

func closeSources(sources []source.Source) {
	for _, s := range sources {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// transition is a state change waiting to be announced
type transition struct {
	state idle.State
	at    time.Time
}

// focusView mirrors terminal focus signals onto the status indicator.
type focusView struct {
	indicator *status.Indicator
}

func (f *focusView) HandleSignal(sig interfaces.Signal) {
	switch sig.Name {
	case monitor.SignalFocus:
		f.indicator.HandleFocusIn()
	case monitor.SignalBlur:
		f.indicator.HandleFocusOut()
	}
}

// Application represents the main application
type Application struct {
	deps   *Dependencies
	logger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	exitCode int
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps:   deps,
		logger: deps.Logger.WithComponent("app"),
	}
}

// Run starts detection and, if command is set, runs it under a PTY until it
// exits. Without a command Run returns when ctx is cancelled.
func (a *Application) Run(ctx context.Context, command string, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	d := a.deps
	d.StatusIndicator.StartAutoRefresh(statusRefreshInterval, d.stopChan)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.Env.Loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("event loop stopped", "error", err)
		}
	}()

	transitions := make(chan transition, 16)
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.announce(ctx, transitions)
	}()

	enqueue := func(state idle.State) func() {
		return func() {
			select {
			case transitions <- transition{state: state, at: d.Env.Loop.Now()}:
			default:
				a.logger.Warn("transition dropped, announcer busy", "state", state)
			}
		}
	}
	if d.InputMonitor != nil {
		view := &focusView{indicator: d.StatusIndicator}
		d.Env.Win.AddEventListener(monitor.SignalFocus, view)
		d.Env.Win.AddEventListener(monitor.SignalBlur, view)
	}

	if err := d.Detector.Init(); err != nil {
		return fmt.Errorf("failed to start detector: %w", err)
	}
	defer d.Detector.Stop()

	// Registered after Init so seeding the initial state is not announced
	// as a transition; it is published once below.
	d.Detector.OnActive(enqueue(idle.StateActive))
	d.Detector.OnIdle(enqueue(idle.StateIdle))

	now := d.Env.Loop.Now()
	initial := d.Detector.State()
	a.logger.Info("detector started",
		"state", initial.String(),
		"time_to_idle", d.Config.TimeToIdle,
		"sources", len(d.Sources))
	d.StatusIndicator.SetIdleState(initial == idle.StateIdle, now)
	if d.Bridge != nil {
		d.Bridge.Broadcast(initial.String(), now)
	}

	for _, s := range d.Sources {
		wg.Add(1)
		go func(s source.Source) {
			defer wg.Done()
			if err := s.Run(ctx, d.Env.Win); err != nil && ctx.Err() == nil {
				a.logger.Warn("activity source stopped", "source", s.Name(), "error", err)
			}
		}(s)
	}

	if d.Bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Bridge.ListenAndServe(ctx, d.Config.Bridge.Listen); err != nil {
				a.logger.Error("bridge stopped", "error", err)
			}
		}()
	}

	if command == "" || d.ProcessManager == nil {
		<-ctx.Done()
		return nil
	}

	if d.NotificationManager != nil {
		d.NotificationManager.SetLabel(filepath.Base(command))
	}

	if err := d.ProcessManager.Start(command, args); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = d.ProcessManager.Stop()
	}()

	err := d.ProcessManager.Wait()

	a.mu.Lock()
	a.exitCode = d.ProcessManager.ExitCode()
	a.mu.Unlock()

	return err
}

// announce publishes each transition to the status line, the bridge and
// the notification manager until ctx is cancelled.
func (a *Application) announce(ctx context.Context, transitions <-chan transition) {
	d := a.deps
	for {
		select {
		case t := <-transitions:
			a.logger.Info("state changed", "state", t.state.String(), "at", t.at)
			d.StatusIndicator.SetIdleState(t.state == idle.StateIdle, t.at)
			if d.Bridge != nil {
				d.Bridge.Broadcast(t.state.String(), t.at)
			}
			if d.NotificationManager != nil {
				d.NotificationManager.NotifyTransition(t.state.String(), t.at)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop gracefully stops the application
func (a *Application) Stop() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if a.deps.ProcessManager != nil {
		return a.deps.ProcessManager.Stop()
	}
	return nil
}

// ExitCode returns the exit code of the wrapped process
func (a *Application) ExitCode() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitCode
}
