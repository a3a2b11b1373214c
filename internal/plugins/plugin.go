// Package plugins defines the collaborator contract for request kinds that
// the core handler set does not answer itself.
package plugins

import (
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
)

// Result reports how a plugin treated an offered request.
type Result int

const (
	NotForMe Result = iota
	Handled
	ForMeButFailed
)

func (r Result) String() string {
	switch r {
	case NotForMe:
		return "not_for_me"
	case Handled:
		return "handled"
	case ForMeButFailed:
		return "for_me_but_failed"
	default:
		return "unknown"
	}
}

// Conn is the slice of a live session a plugin may touch.
// *session.Session satisfies it.
type Conn interface {
	ID() string
	Send(env envelope.ResponseEnvelope) error
	Value(key string) (any, bool)
	SetValue(key string, v any)
}

// Plugin answers requests by sending on conn directly; it never blocks.
type Plugin interface {
	Name() string
	Kinds() []schema.RequestKind
	Handle(conn Conn, env envelope.RequestEnvelope) (Result, error)
}

// Reply sends resp on conn echoing the request's message id.
func Reply(conn Conn, env envelope.RequestEnvelope, resp envelope.Response) error {
	return conn.Send(envelope.ResponseEnvelope{MessageID: env.MessageID, Response: resp})
}

// Notify sends an unsolicited envelope on conn.
func Notify(conn Conn, resp envelope.Response) error {
	return conn.Send(envelope.ResponseEnvelope{Response: resp})
}
