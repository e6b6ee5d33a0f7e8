// view_chat.go: NL2SQL chat view.
//
// Renders a chat.Session as a scrollable log of bubbles above a single
// input line. Questions are started on the event loop, the network call
// runs in a tea.Cmd and the answer is settled when its ResponseMsg
// arrives, so the UI stays responsive while waiting.
package tui

import (
	"context"
	"strings"

	"github.com/DachengChen/sqlchat/chat"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type ChatView struct {
	ctx      context.Context
	session  *chat.Session
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
}

var _ View = (*ChatView)(nil)

func NewChatView(ctx context.Context, session *chat.Session) *ChatView {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about your data..."
	ti.Prompt = "Ask> "
	ti.PromptStyle = StylePrompt
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleWarning

	v := &ChatView{
		ctx:      ctx,
		session:  session,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
	}
	v.refresh()
	return v
}

func (v *ChatView) Name() string { return "Chat" }

// InputEmpty reports whether nothing has been typed yet.
func (v *ChatView) InputEmpty() bool { return v.input.Value() == "" }

func (v *ChatView) SetSize(width, height int) {
	v.width = width
	v.height = height
	// prompt(1) + gap(1)
	vh := height - 2
	if vh < 1 {
		vh = 1
	}
	v.viewport.Width = width
	v.viewport.Height = vh
	v.input.Width = width - lipgloss.Width(v.input.Prompt) - 1
	v.refresh()
}

func (v *ChatView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "Enter", Desc: "send"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
		{Key: "F2", Desc: "raw JSON"},
	}
}

func (v *ChatView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *ChatView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			return v, v.send()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			v.viewport, cmd = v.viewport.Update(msg)
			return v, cmd
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd

	case ResponseMsg:
		if v.session.Settle(msg.Flight, msg.Response) {
			v.refresh()
		}
		return v, nil

	case spinner.TickMsg:
		// Let the tick chain die once the answer is in.
		if v.session.Phase() != chat.PhaseAwaitingResponse {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		v.refresh()
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// send starts a flight for the typed question. Blank input and Enter
// while a request is in flight are no-ops; the session decides which.
func (v *ChatView) send() tea.Cmd {
	flight, ok := v.session.Start(v.input.Value())
	if !ok {
		return nil
	}

	v.input.Reset()
	v.refresh()

	ctx := v.ctx
	return tea.Batch(
		v.spinner.Tick,
		func() tea.Msg {
			return ResponseMsg{Flight: flight, Response: flight.Run(ctx)}
		},
	)
}

// refresh re-renders the log into the viewport and pins it to the bottom.
func (v *ChatView) refresh() {
	v.viewport.SetContent(v.renderLog())
	v.viewport.GotoBottom()
}

func (v *ChatView) renderLog() string {
	state := v.session.Snapshot()

	if len(state.Messages) == 0 {
		return strings.Join([]string{
			StyleTitle.Render("💬 sqlchat"),
			"Ask a question in plain language. It is turned into SQL,",
			"run against the database, and the result is shown here.",
			"",
			StyleDimmed.Render("Type your question and press Enter."),
		}, "\n")
	}

	bubbleW := v.width - 4
	if bubbleW < 20 {
		bubbleW = 20
	}

	var blocks []string
	for _, m := range state.Messages {
		stamp := StyleDimmed.Render(" " + m.CreatedAt.Format("15:04:05"))
		label := StyleAssistantLabel.Render("sqlchat")
		if m.Role == chat.RoleUser {
			label = StyleUserLabel.Render("You")
		}
		blocks = append(blocks, label+stamp, bubbleStyle(m).Width(bubbleW).Render(m.Text))
	}

	if state.Phase == chat.PhaseAwaitingResponse {
		blocks = append(blocks, v.spinner.View()+StyleDimmed.Render(" Generating SQL..."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// bubbleStyle picks the frame for a message; failed answers get a red border.
func bubbleStyle(m chat.Message) lipgloss.Style {
	switch {
	case m.Role == chat.RoleUser:
		return StyleUserBubble
	case m.Failed():
		return StyleAssistantBubble.BorderForeground(ColorError)
	default:
		return StyleAssistantBubble
	}
}

func (v *ChatView) View() string {
	prompt := v.input.View()
	if v.session.Phase() == chat.PhaseAwaitingResponse {
		prompt = StylePrompt.Render(v.input.Prompt) + StyleDimmed.Render("waiting for response...")
	}
	return lipgloss.JoinVertical(lipgloss.Left, v.viewport.View(), "", prompt)
}
