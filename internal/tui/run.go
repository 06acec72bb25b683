package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/danmuck/ircterm/internal/engine"
)

// Run owns the terminal until the event channel closes or ctx is done.
func Run(ctx context.Context, submit Submitter, events <-chan engine.Event) error {
	p := tea.NewProgram(New(submit, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
