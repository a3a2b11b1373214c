// Package scheduler accepts opaque schedule definitions and echoes the stored
// definition back.
package scheduler

import (
	"github.com/danmuck/webmanager/internal/plugins"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
)

const stateKey = "scheduler.payload"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "scheduler" }

func (p *Plugin) Kinds() []schema.RequestKind {
	return []schema.RequestKind{schema.RequestScheduler}
}

// Handle stores a non-empty payload for the session; an empty payload reads
// the stored one back.
func (p *Plugin) Handle(conn plugins.Conn, env envelope.RequestEnvelope) (plugins.Result, error) {
	req, ok := env.Request.(envelope.SchedulerRequest)
	if !ok {
		return plugins.NotForMe, nil
	}
	payload := req.Payload
	if len(payload) > 0 {
		conn.SetValue(stateKey, payload)
	} else if v, ok := conn.Value(stateKey); ok {
		payload, _ = v.([]byte)
	}
	if err := plugins.Reply(conn, env, envelope.SchedulerResponse{Payload: payload}); err != nil {
		return plugins.ForMeButFailed, err
	}
	return plugins.Handled, nil
}
