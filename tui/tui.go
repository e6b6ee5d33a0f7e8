package tui

import (
	"context"

	"github.com/DachengChen/sqlchat/chat"
	tea "github.com/charmbracelet/bubbletea"
)

// Start launches the chat TUI on session and blocks until the user quits.
// endpoint is only shown in the header.
func Start(ctx context.Context, session *chat.Session, endpoint string) error {
	app := NewApp(ctx, session, endpoint)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	_, err := p.Run()
	return err
}
