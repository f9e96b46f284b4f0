// ABOUTME: TUI initialization and event bridging
// ABOUTME: Runs the bubbletea program and forwards session events into it
package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/sendspin-client/pkg/sendspin"
)

// ErrQuit is returned by Run when the user quits from the TUI
var ErrQuit = errors.New("quit from tui")

// Session is what the TUI needs from the engine
type Session interface {
	Controller
	Subscribe() (<-chan sendspin.Event, func())
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled
func Run(ctx context.Context, s Session) error {
	p := tea.NewProgram(NewModel(s), tea.WithAltScreen(), tea.WithContext(ctx))

	events, cancel := s.Subscribe()
	defer cancel()

	go func() {
		for e := range events {
			p.Send(EventMsg{Event: e})
		}
	}()

	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	return ErrQuit
}
