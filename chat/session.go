// Package chat implements the chat session pipeline: an append-only
// message log plus a two-state request lifecycle that admits at most one
// in-flight NL2SQL question at a time.
//
// Lifecycle:
//
//	Idle --Start(valid)--> AwaitingResponse --Settle(any outcome)--> Idle
//
// Start while AwaitingResponse is rejected and changes nothing. There is
// no queueing, cancellation or timeout; if the caller never returns, the
// session stays AwaitingResponse.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DachengChen/sqlchat/applog"
	"github.com/DachengChen/sqlchat/nl2sql"
)

// Phase is the request lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingResponse
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingResponse:
		return "awaiting-response"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Caller issues one NL2SQL request. *nl2sql.Client implements it.
type Caller interface {
	Call(ctx context.Context, question string) nl2sql.Response
}

// State is a read-only snapshot for renderers.
type State struct {
	Messages     []Message
	Phase        Phase
	LastResponse nl2sql.Response // nil until the first settlement
}

// Session owns the log and phase of one conversation. It is safe for
// concurrent use, but is meant to have a single writer (the UI loop).
type Session struct {
	caller Caller
	now    func() time.Time
	newID  func() string

	mu           sync.Mutex
	messages     []Message
	phase        Phase
	lastResponse nl2sql.Response
	inFlight     *Flight
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates an idle session with an empty log.
func NewSession(caller Caller, opts ...Option) *Session {
	s := &Session{
		caller: caller,
		now:    time.Now,
		newID:  newMessageID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flight is one accepted question between Start and Settle.
type Flight struct {
	session  *Session
	question string
	userMsg  Message
}

// Question returns the trimmed question text.
func (f *Flight) Question() string { return f.question }

// UserMessage returns the log entry appended for this question.
func (f *Flight) UserMessage() Message { return f.userMsg }

// Send runs a whole cycle: append the user message, call the service,
// append the formatted answer. It returns false, having done nothing,
// when the question is blank or another request is in flight.
func (s *Session) Send(ctx context.Context, question string) bool {
	f, ok := s.Start(question)
	if !ok {
		return false
	}
	s.Settle(f, f.Run(ctx))
	return true
}

// Start is the synchronous half of Send, for event loops that run the
// network call elsewhere. It appends the user message and moves to
// AwaitingResponse. The caller must pass the returned Flight to Run and
// then Settle.
func (s *Session) Start(question string) (*Flight, bool) {
	text := strings.TrimSpace(question)
	if text == "" {
		applog.Debug("chat: ignoring blank question")
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseAwaitingResponse {
		applog.Debug("chat: ignoring question while a request is in flight")
		return nil, false
	}

	msg := s.appendLocked(RoleUser, text, "")
	s.phase = PhaseAwaitingResponse
	f := &Flight{session: s, question: text, userMsg: msg}
	s.inFlight = f
	return f, true
}

// Run performs the network call. It does not touch session state and may
// run on any goroutine. It always returns a non-nil Response: a nil
// result or a panic in the Caller becomes a transport error so the
// question still gets an answer.
func (f *Flight) Run(ctx context.Context) (resp nl2sql.Response) {
	defer func() {
		if r := recover(); r != nil {
			applog.Error("chat: caller panicked: %v", r)
			resp = nl2sql.TransportError(fmt.Sprintf("request failed: %v", r))
		}
	}()

	resp = f.session.caller.Call(ctx, f.question)
	if resp == nil {
		resp = nl2sql.TransportError("no response received")
	}
	return resp
}

// Settle appends the formatted answer for f, records resp as the last
// response and returns to Idle. Only the current flight can settle, and
// only once; anything else returns false and changes nothing.
func (s *Session) Settle(f *Flight, resp nl2sql.Response) bool {
	if resp == nil {
		resp = nl2sql.TransportError("no response received")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f == nil || s.inFlight != f {
		return false
	}

	s.appendLocked(RoleAssistant, nl2sql.Format(resp), nl2sql.Kind(resp))
	s.lastResponse = resp
	s.phase = PhaseIdle
	s.inFlight = nil
	return true
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return State{
		Messages:     msgs,
		Phase:        s.phase,
		LastResponse: s.lastResponse,
	}
}

// Phase returns the current lifecycle state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) appendLocked(role Role, text, kind string) Message {
	msg := Message{
		ID:        s.newID(),
		Seq:       len(s.messages) + 1,
		Role:      role,
		Text:      text,
		CreatedAt: s.now(),
		Kind:      kind,
	}
	s.messages = append(s.messages, msg)
	return msg
}
