// messages.go defines Bubble Tea messages used for async communication.
//
// The NL2SQL call runs inside a tea.Cmd; its outcome comes back to the
// event loop as a ResponseMsg so the session is only mutated there.
package tui

import (
	"github.com/DachengChen/sqlchat/chat"
	"github.com/DachengChen/sqlchat/nl2sql"
)

// ResponseMsg is sent when a flight's network call returns.
type ResponseMsg struct {
	Flight   *chat.Flight
	Response nl2sql.Response
}
