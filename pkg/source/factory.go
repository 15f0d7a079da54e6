package source

import (
	"log/slog"
)

// Options selects the sources Defaults builds.
type Options struct {
	// WatchPaths are directories whose writes count as activity.
	WatchPaths []string
	// Tmux enables the tmux poller when running inside tmux.
	Tmux bool
	// Platform enables the platform idle poller where one exists.
	Platform bool
}

// Defaults builds every source enabled by opts that is available on this
// machine. A watch path that cannot be watched is returned as an error
// together with the sources built so far.
func Defaults(opts Options, logger *slog.Logger) ([]Source, error) {
	var sources []Source

	if len(opts.WatchPaths) > 0 {
		w, err := NewFileWatcher(opts.WatchPaths, logger)
		if err != nil {
			return sources, err
		}
		sources = append(sources, w)
	}

	if opts.Tmux {
		if p := NewTmuxPoller("", DefaultTmuxInterval, logger); p.IsAvailable() {
			sources = append(sources, p)
		}
	}

	if opts.Platform {
		if s := newPlatformSource(logger); s != nil {
			sources = append(sources, s)
		}
	}

	return sources, nil
}
