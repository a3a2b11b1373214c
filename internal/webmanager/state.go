package webmanager

import "github.com/danmuck/webmanager/internal/plugins"

// Conn is what handlers see of a session.
type Conn = plugins.Conn

const demoStateKey = "webmanager.demo"

// InitialCounter seeds every new session's demo counter.
const InitialCounter int32 = 42

// demoState is response content that advances per request on one session.
type demoState struct {
	counter int32
	toggle  bool
}

func stateOf(conn Conn) *demoState {
	if v, ok := conn.Value(demoStateKey); ok {
		if st, ok := v.(*demoState); ok {
			return st
		}
	}
	st := &demoState{counter: InitialCounter}
	conn.SetValue(demoStateKey, st)
	return st
}
