// app.go is the top-level Bubble Tea model.
//
// Layout: header, a bordered frame holding the chat view (and the raw
// JSON panel beside it when toggled with F2), and a one-line status bar.
// `?` toggles the help overlay while the input is empty; Ctrl+C quits.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/DachengChen/sqlchat/chat"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.1.0"

// App is the root Bubble Tea model.
type App struct {
	session  *chat.Session
	endpoint string

	chat  *ChatView
	debug *DebugView

	width     int
	height    int
	showHelp  bool
	showDebug bool
}

// NewApp creates the application around an existing session.
func NewApp(ctx context.Context, session *chat.Session, endpoint string) *App {
	return &App{
		session:  session,
		endpoint: endpoint,
		chat:     NewChatView(ctx, session),
		debug:    NewDebugView(session),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.chat.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case ResponseMsg:
		_, cmd := a.chat.Update(msg)
		a.debug.Refresh()
		return a, cmd
	}

	_, cmd := a.chat.Update(msg)
	return a, cmd
}

// resize lays out the frame: header(1) + border(2) + status(1).
func (a *App) resize() {
	contentW := a.width - 2
	contentH := a.height - 4
	if a.showDebug {
		chatW := contentW * 3 / 5
		a.chat.SetSize(chatW, contentH)
		a.debug.SetSize(contentW-chatW, contentH)
		return
	}
	a.chat.SetSize(contentW, contentH)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "f2":
		a.showDebug = !a.showDebug
		a.debug.Refresh()
		a.resize()
		return a, nil
	case "esc":
		a.showHelp = false
		return a, nil
	case "?":
		// Typed as text once the user has started a question.
		if a.showHelp || a.chat.InputEmpty() {
			a.showHelp = !a.showHelp
			return a, nil
		}
	}

	if a.showHelp {
		return a, nil
	}

	if a.showDebug {
		switch msg.String() {
		case "ctrl+u", "ctrl+d":
			_, cmd := a.debug.Update(msg)
			return a, cmd
		}
	}

	_, cmd := a.chat.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	var inner string
	switch {
	case a.showHelp:
		inner = a.renderHelp()
	case a.showDebug:
		inner = lipgloss.JoinHorizontal(lipgloss.Top, a.chat.View(), a.debug.View())
	default:
		inner = a.chat.View()
	}

	frameHeight := a.height - 4
	if frameHeight < 0 {
		frameHeight = 0
	}
	frame := StyleBorder.
		Width(a.width - 2).
		Height(frameHeight).
		Render(inner)

	return a.renderHeader() + "\n" + frame + "\n" + a.renderStatusBar()
}

// renderHeader draws logo + version + endpoint, and the session phase on the right.
func (a *App) renderHeader() string {
	logo := StyleBold.Render("🐘 sqlchat")
	version := StyleDimmed.Render(" v" + appVersion)
	target := StyleSuccess.Render("  ⚡ " + a.endpoint)
	content := logo + version + target

	phase := a.session.Phase()
	right := StyleDimmed.Render(phase.String())
	if phase == chat.PhaseAwaitingResponse {
		right = StyleWarning.Render(phase.String())
	}

	gap := a.width - lipgloss.Width(content) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Width(a.width).
		Render(content + strings.Repeat(" ", gap) + right)
}

func (a *App) renderStatusBar() string {
	var parts []string
	for _, h := range a.helpItems() {
		parts = append(parts, StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
	}
	return StyleStatusBar.Width(a.width).Render(strings.Join(parts, "  │  "))
}

func (a *App) helpItems() []KeyBinding {
	items := a.chat.ShortHelp()
	if a.showDebug {
		items = append(items, a.debug.ShortHelp()...)
	}
	return append(items,
		KeyBinding{Key: "?", Desc: "help"},
		KeyBinding{Key: "Ctrl+C", Desc: "quit"},
	)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ sqlchat Keyboard Shortcuts"),
		"",
		StyleHelpKey.Render("Enter") + "            Send the question",
		StyleHelpKey.Render("PgUp/PgDn") + "        Scroll the conversation",
		StyleHelpKey.Render("F2") + "               Toggle the raw JSON panel",
		StyleHelpKey.Render("Ctrl+U/Ctrl+D") + "    Scroll the raw JSON panel",
		StyleHelpKey.Render("?") + "                Toggle this help (empty input)",
		StyleHelpKey.Render("Esc") + "              Close this help",
		StyleHelpKey.Render("Ctrl+C") + "           Quit",
		"",
		StyleDimmed.Render(fmt.Sprintf("Answers come from %s", a.endpoint)),
		StyleDimmed.Render("Only one question runs at a time; Enter is ignored while waiting."),
		"",
		StyleDimmed.Render("Press ? to close"),
	}

	return lipgloss.NewStyle().
		Width(a.width-4).
		Height(a.height-6).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}
