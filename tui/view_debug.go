package tui

import (
	"encoding/json"

	"github.com/DachengChen/sqlchat/chat"
	"github.com/DachengChen/sqlchat/nl2sql"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DebugView shows the last raw response as indented JSON.
type DebugView struct {
	session  *chat.Session
	viewport viewport.Model
	last     nl2sql.Response
}

var _ View = (*DebugView)(nil)

func NewDebugView(session *chat.Session) *DebugView {
	v := &DebugView{session: session, viewport: viewport.New(40, 20)}
	v.Refresh()
	return v
}

func (v *DebugView) Name() string { return "Debug" }

func (v *DebugView) SetSize(width, height int) {
	// title(1) + gap(1); border(1) + padding(1)
	v.viewport.Width = max(width-2, 1)
	v.viewport.Height = max(height-2, 1)
}

func (v *DebugView) ShortHelp() []KeyBinding {
	return []KeyBinding{{Key: "Ctrl+U/Ctrl+D", Desc: "scroll JSON"}}
}

func (v *DebugView) Init() tea.Cmd { return nil }

func (v *DebugView) Update(msg tea.Msg) (View, tea.Cmd) {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// Refresh picks up a new LastResponse, if any.
func (v *DebugView) Refresh() {
	resp := v.session.Snapshot().LastResponse
	if resp != nil && resp == v.last {
		return
	}
	v.last = resp
	v.viewport.SetContent(renderRaw(resp))
	v.viewport.GotoTop()
}

func renderRaw(resp nl2sql.Response) string {
	if resp == nil {
		return StyleDimmed.Render("No response yet.")
	}
	raw, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return StyleError.Render("cannot encode response: " + err.Error())
	}
	return string(raw)
}

func (v *DebugView) View() string {
	title := StyleBold.Render("Raw response") + StyleDimmed.Render(" ("+nl2sql.Kind(v.last)+")")
	return StyleDebugBorder.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", v.viewport.View()))
}
