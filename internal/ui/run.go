package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"storycanvas/internal/session"
	"storycanvas/internal/util"
)

// Run boots the TUI program and blocks until it exits.
func Run(ctx context.Context, sess *session.Store, cfg util.Config) error {
	m := initialModel(ctx, sess, cfg)
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
