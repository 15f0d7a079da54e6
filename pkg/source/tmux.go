package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

// DefaultTmuxInterval is how often TmuxPoller samples client activity.
const DefaultTmuxInterval = 2 * time.Second

// TmuxPoller reports keyboard activity seen by the tmux clients attached
// to a session.
type TmuxPoller struct {
	sessionName string
	interval    time.Duration
	signal      string
	cmdExecutor CommandExecutor
	getenv      func(string) string
	logger      *slog.Logger

	last time.Time
}

// NewTmuxPoller creates a poller for sessionName. If sessionName is empty
// the current session is detected on every poll.
func NewTmuxPoller(sessionName string, interval time.Duration, logger *slog.Logger) *TmuxPoller {
	if interval <= 0 {
		interval = DefaultTmuxInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &TmuxPoller{
		sessionName: sessionName,
		interval:    interval,
		signal:      SignalTmuxActivity,
		cmdExecutor: defaultCmdExecutor,
		getenv:      os.Getenv,
		logger:      logger,
	}
}

// Name implements Source.
func (p *TmuxPoller) Name() string {
	return "tmux"
}

// IsAvailable checks if tmux is available and we're in a tmux session.
func (p *TmuxPoller) IsAvailable() bool {
	if !p.isInTmux() {
		return false
	}

	_, err := p.cmdExecutor("tmux", "-V")
	return err == nil
}

// Run polls tmux until ctx is cancelled, dispatching a signal whenever a
// client shows activity newer than the previous sample.
func (p *TmuxPoller) Run(ctx context.Context, d interfaces.SignalDispatcher) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		advanced, err := p.poll()
		if err != nil {
			p.logger.Debug("tmux poll failed", "error", err)
		} else if advanced {
			d.Dispatch(p.signal)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll samples tmux once and reports whether activity advanced. The first
// successful sample only establishes a baseline.
func (p *TmuxPoller) poll() (bool, error) {
	latest, err := p.latestActivity()
	if err != nil {
		return false, err
	}

	baseline := p.last.IsZero()
	advanced := latest.After(p.last)
	if advanced {
		p.last = latest
	}
	return advanced && !baseline, nil
}

// latestActivity retrieves the newest client activity time from tmux.
func (p *TmuxPoller) latestActivity() (time.Time, error) {
	if !p.isInTmux() {
		return time.Time{}, fmt.Errorf("not in a tmux session")
	}

	sessionName := p.sessionName
	if sessionName == "" {
		name, err := p.getCurrentSessionName()
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to get current session name: %w", err)
		}
		sessionName = name
	}

	latest, err := p.getSessionActivity(sessionName)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get session activity: %w", err)
	}

	return latest, nil
}

// isInTmux checks if we're running inside a tmux session.
func (p *TmuxPoller) isInTmux() bool {
	return p.getenv("TMUX") != ""
}

// getCurrentSessionName gets the name of the current tmux session.
func (p *TmuxPoller) getCurrentSessionName() (string, error) {
	output, err := p.cmdExecutor("tmux", "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(output)), nil
}

// getSessionActivity returns the most recent activity across all clients
// of a session.
func (p *TmuxPoller) getSessionActivity(sessionName string) (time.Time, error) {
	output, err := p.cmdExecutor("tmux", "list-clients", "-t", sessionName, "-F", "#{client_activity}")
	if err != nil {
		return time.Time{}, err
	}

	var mostRecent time.Time
	for _, line := range bytes.Split(bytes.TrimSpace(output), []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		// client_activity is seconds since epoch
		secs, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			continue
		}

		activity := time.Unix(secs, 0)
		if activity.After(mostRecent) {
			mostRecent = activity
		}
	}

	if mostRecent.IsZero() {
		return time.Time{}, fmt.Errorf("no client activity for session %s", sessionName)
	}

	return mostRecent, nil
}
