// Package sensact reports synthetic sensor/actor states by id.
package sensact

import (
	"github.com/danmuck/webmanager/internal/plugins"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
)

// Source yields the current value of one sensor/actor.
type Source func(id uint32) uint32

type Plugin struct {
	Source Source
}

func New() *Plugin {
	return &Plugin{Source: DefaultSource}
}

// DefaultSource reports even ids as off and odd ids as on.
func DefaultSource(id uint32) uint32 {
	return id % 2
}

func (p *Plugin) Name() string { return "sensact" }

func (p *Plugin) Kinds() []schema.RequestKind {
	return []schema.RequestKind{schema.RequestSensactStatus}
}

func (p *Plugin) Handle(conn plugins.Conn, env envelope.RequestEnvelope) (plugins.Result, error) {
	req, ok := env.Request.(envelope.SensactStatusRequest)
	if !ok {
		return plugins.NotForMe, nil
	}
	source := p.Source
	if source == nil {
		source = DefaultSource
	}
	var statuses []envelope.SensactState
	for _, id := range req.IDs {
		statuses = append(statuses, envelope.SensactState{ID: id, Value: source(id)})
	}
	if err := plugins.Reply(conn, env, envelope.SensactStatusResponse{Statuses: statuses}); err != nil {
		return plugins.ForMeButFailed, err
	}
	return plugins.Handled, nil
}
