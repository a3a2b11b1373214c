package sensact

import (
	"reflect"
	"testing"

	"github.com/danmuck/webmanager/internal/plugins"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/testutil/fakeconn"
	"github.com/danmuck/webmanager/internal/testutil/testlog"
)

func TestStatusPerRequestedID(t *testing.T) {
	testlog.Start(t)
	p := &Plugin{Source: func(id uint32) uint32 { return id * 10 }}
	conn := fakeconn.New("s1")
	res, err := p.Handle(conn, envelope.RequestEnvelope{MessageID: 4, Request: envelope.SensactStatusRequest{IDs: []uint32{1, 2}}})
	if res != plugins.Handled || err != nil {
		t.Fatalf("handle: res=%s err=%v", res, err)
	}
	got := conn.Sent()[0].Response.(envelope.SensactStatusResponse).Statuses
	want := []envelope.SensactState{{ID: 1, Value: 10}, {ID: 2, Value: 20}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("statuses=%+v want %+v", got, want)
	}
}

func TestEmptyIDsAnswersEmpty(t *testing.T) {
	testlog.Start(t)
	conn := fakeconn.New("s1")
	if res, err := New().Handle(conn, envelope.RequestEnvelope{Request: envelope.SensactStatusRequest{}}); res != plugins.Handled || err != nil {
		t.Fatalf("handle: res=%s err=%v", res, err)
	}
	if got := conn.Sent()[0].Response.(envelope.SensactStatusResponse).Statuses; got != nil {
		t.Fatalf("expected no statuses, got %+v", got)
	}
}
