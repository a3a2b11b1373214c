package plugins

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
)

var (
	ErrPluginExists = errors.New("plugin already exists")
	ErrPluginNil    = errors.New("plugin is nil")
	ErrInvalidName  = errors.New("invalid plugin name")
	ErrUnknownKind  = errors.New("plugin claims unknown kind")
)

// Registry offers requests to plugins in registration order.
type Registry struct {
	order  []Plugin
	byName map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Plugin)}
}

// Register appends p to the offer order.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return ErrPluginNil
	}
	name := strings.TrimSpace(p.Name())
	if !isValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, p.Name())
	}
	if _, ok := r.byName[name]; ok {
		return ErrPluginExists
	}
	for _, k := range p.Kinds() {
		if !k.Known() {
			return fmt.Errorf("%w: %q claims %d", ErrUnknownKind, name, uint32(k))
		}
	}
	r.byName[name] = p
	r.order = append(r.order, p)
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names returns plugin names in offer order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, p.Name())
	}
	return out
}

// Claims reports whether any plugin lists kind.
func (r *Registry) Claims(kind schema.RequestKind) bool {
	for _, p := range r.order {
		for _, k := range p.Kinds() {
			if k == kind {
				return true
			}
		}
	}
	return false
}

// Offer walks the registry until a plugin takes the request. The name of the
// plugin that answered is returned with its result; NotForMe means nobody did.
func (r *Registry) Offer(conn Conn, env envelope.RequestEnvelope) (string, Result, error) {
	for _, p := range r.order {
		res, err := p.Handle(conn, env)
		if res == NotForMe {
			continue
		}
		return p.Name(), res, err
	}
	return "", NotForMe, nil
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
