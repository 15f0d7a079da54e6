package process

import (
	"golang.org/x/term"
)

// setRawMode puts the terminal behind fd into raw mode and returns a
// function restoring its previous state.
func setRawMode(fd int) (func(), error) {
	if !term.IsTerminal(fd) {
		return nil, errNotTerminal
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}

	return func() {
		_ = term.Restore(fd, oldState)
	}, nil
}
