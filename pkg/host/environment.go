package host

import (
	"log/slog"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// Environment is an in-process host: one loop, one window, one document.
type Environment struct {
	Loop *Loop
	Win  *Target
	Doc  *Document
}

// Ensure Environment implements Host
var _ interfaces.Host = (*Environment)(nil)

// NewEnvironment creates an environment driven by clock with an
// unprefixed visibility API.
func NewEnvironment(clock Clock, logger *slog.Logger) *Environment {
	loop := NewLoop(clock, logger)
	return &Environment{
		Loop: loop,
		Win:  NewTarget("window", loop),
		Doc:  NewDocument(loop, PrefixNone),
	}
}

// Window implements interfaces.Host.
func (e *Environment) Window() any {
	return e.Win
}

// Document implements interfaces.Host.
func (e *Environment) Document() any {
	return e.Doc
}

// Scheduler implements interfaces.Host.
func (e *Environment) Scheduler() interfaces.Scheduler {
	return e.Loop
}
