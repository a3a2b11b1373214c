package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

type inboundMessage struct {
	messageType int
	data        []byte
}

type fakeTransport struct {
	in      chan inboundMessage
	closeCh chan struct{}
	written chan []byte

	mu               sync.Mutex
	closed           bool
	writes           int
	writesAfterClose int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:      make(chan inboundMessage, 16),
		closeCh: make(chan struct{}),
		written: make(chan []byte, 16),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case m, ok := <-f.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return m.messageType, m.data, nil
	case <-f.closeCh:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.writesAfterClose++
		return errors.New("write on closed connection")
	}
	f.writes++
	select {
	case f.written <- data:
	default:
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closeCh)
	}
	return nil
}

func (f *fakeTransport) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes, f.writesAfterClose
}

func (f *fakeTransport) push(data []byte) {
	f.in <- inboundMessage{messageType: websocket.BinaryMessage, data: data}
}

func runSession(t *testing.T, s *Session) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	t.Cleanup(func() { _ = s.Close() })
	return errCh
}

func expectText(t *testing.T, ft *fakeTransport, want string) {
	t.Helper()
	select {
	case b := <-ft.written:
		env, err := envelope.DecodeResponse(b)
		if err != nil {
			t.Fatalf("decode written frame: %v", err)
		}
		got, ok := env.Response.(envelope.LiveLogItemNotification)
		if !ok || got.Text != want {
			t.Fatalf("unexpected response %#v want text %q", env.Response, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func textReply(s *Session, text string) {
	_ = s.Send(envelope.ResponseEnvelope{Response: envelope.LiveLogItemNotification{Text: text}})
}

func TestDispatchAndSend(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	s := New(ft, DefaultConfig(), DispatcherFunc(func(s *Session, msg []byte) {
		textReply(s, string(msg))
	}))
	runSession(t, s)
	ft.push([]byte("hello"))
	expectText(t, ft, "hello")
	if s.ID() == "" {
		t.Fatalf("expected session id")
	}
}

func TestScheduleCompletesOutOfOrder(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	s := New(ft, DefaultConfig(), DispatcherFunc(func(s *Session, msg []byte) {
		delay := time.Duration(0)
		if string(msg) == "slow" {
			delay = 150 * time.Millisecond
		}
		s.Schedule("test", 0, delay, func() { textReply(s, string(msg)) })
	}))
	runSession(t, s)
	ft.push([]byte("slow"))
	ft.push([]byte("fast"))
	expectText(t, ft, "fast")
	expectText(t, ft, "slow")
}

func TestCloseCancelsPendingCompletions(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	accepted := make(chan struct{})
	fired := false
	var mu sync.Mutex
	s := New(ft, DefaultConfig(), DispatcherFunc(func(s *Session, msg []byte) {
		s.Schedule("slow", 7, 200*time.Millisecond, func() {
			mu.Lock()
			fired = true
			mu.Unlock()
			textReply(s, "late")
		})
		close(accepted)
	}))
	errCh := runSession(t, s)
	ft.push([]byte("go"))
	<-accepted

	if pending := s.Pending(); len(pending) != 1 || pending[0].MessageID != 7 {
		t.Fatalf("expected one pending completion, got %+v", pending)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed from Run, got %v", err)
	}
	time.Sleep(350 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Fatalf("cancelled completion ran")
	}
	writes, after := ft.counts()
	if writes != 0 || after != 0 {
		t.Fatalf("expected no writes, got writes=%d after_close=%d", writes, after)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("pending set not cleared")
	}
}

func TestCloseRacingScheduleLeavesNothingPending(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	s := New(ft, DefaultConfig(), DispatcherFunc(func(s *Session, msg []byte) {
		s.Schedule("slow", 9, time.Second, func() { textReply(s, "late") })
	}))
	errCh := runSession(t, s)
	ft.push([]byte("go"))
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	if err := <-closed; err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed from Run, got %v", err)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("pending set not cleared: %+v", s.Pending())
	}
	time.Sleep(1200 * time.Millisecond)
	if writes, after := ft.counts(); writes != 0 || after != 0 {
		t.Fatalf("expected no writes, got writes=%d after_close=%d", writes, after)
	}
}

func TestTransportErrorEndsRun(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	s := New(ft, DefaultConfig(), DispatcherFunc(func(*Session, []byte) {}))
	errCh := runSession(t, s)
	close(ft.in)
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTransport) || !errors.Is(err, io.EOF) {
			t.Fatalf("expected transport failure wrapping EOF, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after transport error")
	}
	if err := s.SendRaw([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after close, got %v", err)
	}
}

func TestContextCancelEndsRun(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	s := New(ft, DefaultConfig(), DispatcherFunc(func(*Session, []byte) {}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestTrySendDropsWhenFull(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.OutboundQueue = 1
	s := New(newFakeTransport(), cfg, DispatcherFunc(func(*Session, []byte) {}))
	if err := s.TrySend([]byte("a")); err != nil {
		t.Fatalf("first try send: %v", err)
	}
	if err := s.TrySend([]byte("b")); !errors.Is(err, ErrOutboundFull) {
		t.Fatalf("expected ErrOutboundFull, got %v", err)
	}
	_ = s.Close()
	if err := s.TrySend([]byte("c")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestRateLimitDropsExcessFrames(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.FramesPerSecond = 0.001
	cfg.FrameBurst = 1
	ft := newFakeTransport()
	s := New(ft, cfg, DispatcherFunc(func(s *Session, msg []byte) {
		textReply(s, string(msg))
	}))
	runSession(t, s)
	ft.push([]byte("first"))
	ft.push([]byte("second"))
	ft.push([]byte("third"))
	expectText(t, ft, "first")
	select {
	case b := <-ft.written:
		t.Fatalf("unexpected extra frame of %d bytes", len(b))
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCompletionPanicIsRecovered(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	s := New(ft, DefaultConfig(), DispatcherFunc(func(s *Session, msg []byte) {
		s.Schedule("boom", 0, 0, func() {
			if string(msg) == "panic" {
				panic("handler bug")
			}
			textReply(s, string(msg))
		})
	}))
	runSession(t, s)
	ft.push([]byte("panic"))
	ft.push([]byte("after"))
	expectText(t, ft, "after")
	if s.Err() != nil {
		t.Fatalf("session should stay open, err=%v", s.Err())
	}
}

func TestNonBinaryMessagesDropped(t *testing.T) {
	testlog.Start(t)
	ft := newFakeTransport()
	s := New(ft, DefaultConfig(), DispatcherFunc(func(s *Session, msg []byte) {
		textReply(s, string(msg))
	}))
	runSession(t, s)
	ft.in <- inboundMessage{messageType: websocket.TextMessage, data: []byte("text")}
	ft.push([]byte("binary"))
	expectText(t, ft, "binary")
}

func TestSessionValuesAreScoped(t *testing.T) {
	testlog.Start(t)
	a := New(newFakeTransport(), DefaultConfig(), nil)
	b := New(newFakeTransport(), DefaultConfig(), nil)
	a.SetValue("counter", 42)
	if _, ok := b.Value("counter"); ok {
		t.Fatalf("state leaked across sessions")
	}
	if v, ok := a.Value("counter"); !ok || v.(int) != 42 {
		t.Fatalf("unexpected value %v ok=%v", v, ok)
	}
	if a.ID() == b.ID() {
		t.Fatalf("session ids must differ")
	}
}
