package webmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/frame"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/testutil/testlog"
	"github.com/gorilla/websocket"
)

func testConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.Broadcast.Enabled = false
	cfg.Latency = map[schema.RequestKind]time.Duration{}
	cfg.StaticDocumentPath = ""
	return cfg
}

func startService(t *testing.T, cfg ServiceConfig) (*Service, *httptest.Server) {
	t.Helper()
	collab, err := DefaultCollaborators()
	if err != nil {
		t.Fatalf("collaborators: %v", err)
	}
	svc, err := NewServiceWithConfig(cfg, collab)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(svc.Close)
	return svc, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendRequest(t *testing.T, conn *websocket.Conn, id uint64, req envelope.Request) {
	t.Helper()
	b, err := envelope.EncodeRequest(envelope.RequestEnvelope{MessageID: id, Request: req})
	if err != nil {
		t.Fatalf("encode %s: %v", req.RequestKind(), err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readResponse(t *testing.T, conn *websocket.Conn, timeout time.Duration) envelope.ResponseEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	mt, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type=%d", mt)
	}
	env, err := envelope.DecodeResponse(b)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestEveryRequestKindIsAnswered(t *testing.T) {
	testlog.Start(t)
	_, srv := startService(t, testConfig())
	conn := dial(t, srv, "/webmanager_ws")

	cases := []struct {
		req  envelope.Request
		want schema.ResponseKind
	}{
		{envelope.NetworkInformationRequest{ForceNewSearch: true}, schema.ResponseNetworkInformation},
		{envelope.WifiConnectRequest{Ssid: DefaultKnownGoodSsid, Password: "pw"}, schema.ResponseWifiConnectSuccessful},
		{envelope.WifiConnectRequest{Ssid: "elsewhere"}, schema.ResponseWifiConnectFailed},
		{envelope.WifiDisconnectRequest{}, schema.ResponseWifiDisconnect},
		{envelope.SystemDataRequest{}, schema.ResponseSystemData},
		{envelope.JournalRequest{}, schema.ResponseJournal},
		{envelope.GetUserSettingsRequest{GroupKey: "Group1"}, schema.ResponseGetUserSettings},
		{envelope.SetUserSettingsRequest{GroupKey: "Group1"}, schema.ResponseSetUserSettings},
		{envelope.TimeseriesRequest{Granularity: envelope.GranularityOneHour}, schema.ResponseTimeseries},
		{envelope.FingerprintSensorInfoRequest{}, schema.ResponseFingerprintSensorInfo},
		{envelope.FingersRequest{}, schema.ResponseFingers},
		{envelope.StoreFingerActionRequest{FingerIndex: 1, ActionIndex: 2}, schema.ResponseStoreFingerAction},
		{envelope.StoreFingerScheduleRequest{FingerIndex: 1, ScheduleName: "s"}, schema.ResponseStoreFingerSchedule},
		{envelope.SchedulerRequest{Payload: []byte("cron")}, schema.ResponseScheduler},
		{envelope.SensactStatusRequest{IDs: []uint32{1, 2}}, schema.ResponseSensactStatus},
	}
	for i, tc := range cases {
		id := uint64(100 + i)
		sendRequest(t, conn, id, tc.req)
		env := readResponse(t, conn, 2*time.Second)
		if env.MessageID != id || env.Response.ResponseKind() != tc.want {
			t.Fatalf("%s: got id=%d kind=%s want id=%d kind=%s", tc.req.RequestKind(), env.MessageID, env.Response.ResponseKind(), id, tc.want)
		}
	}

	sendRequest(t, conn, 200, envelope.EnrollNewFingerRequest{Name: "thumb"})
	if env := readResponse(t, conn, 2*time.Second); env.Response.ResponseKind() != schema.ResponseEnrollNewFinger || env.MessageID != 200 {
		t.Fatalf("unexpected enroll response %#v", env)
	}
	for step := 1; step <= 3; step++ {
		env := readResponse(t, conn, 2*time.Second)
		if env.Response.ResponseKind() != schema.NotifyEnrollNewFinger || env.MessageID != 0 {
			t.Fatalf("unexpected enroll progress %#v", env)
		}
	}

	// restart answers nothing; the next reply belongs to the following request
	sendRequest(t, conn, 300, envelope.RestartRequest{})
	sendRequest(t, conn, 301, envelope.WifiDisconnectRequest{})
	if env := readResponse(t, conn, 2*time.Second); env.MessageID != 301 {
		t.Fatalf("restart produced a frame: %#v", env)
	}
}

func TestUnknownAndMalformedFramesAreDropped(t *testing.T) {
	testlog.Start(t)
	svc, srv := startService(t, testConfig())
	conn := dial(t, srv, "/webmanager_ws")

	unknown, err := frame.Encode(frame.Frame{Header: frame.Header{MessageID: 1, MessageType: 999}}, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("encode unknown: %v", err)
	}
	valid, err := envelope.EncodeRequest(envelope.RequestEnvelope{MessageID: 2, Request: envelope.JournalRequest{}})
	if err != nil {
		t.Fatalf("encode journal: %v", err)
	}
	for _, msg := range [][]byte{unknown, valid[:len(valid)-1], valid[:10], []byte("junk")} {
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, valid); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := readResponse(t, conn, 2*time.Second)
	if env.MessageID != 2 || env.Response.ResponseKind() != schema.ResponseJournal {
		t.Fatalf("expected journal reply after dropped frames, got %#v", env)
	}
	if svc.Hub().Len() != 1 {
		t.Fatalf("session should survive, hub len=%d", svc.Hub().Len())
	}
}

func TestCompletionsOutOfOrderByLatency(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Latency = map[schema.RequestKind]time.Duration{
		schema.RequestWifiConnect: 200 * time.Millisecond,
	}
	_, srv := startService(t, cfg)
	conn := dial(t, srv, "/webmanager_ws")

	sendRequest(t, conn, 1, envelope.WifiConnectRequest{Ssid: DefaultKnownGoodSsid})
	sendRequest(t, conn, 2, envelope.WifiDisconnectRequest{})
	if env := readResponse(t, conn, 2*time.Second); env.MessageID != 2 {
		t.Fatalf("fast reply should arrive first, got %d", env.MessageID)
	}
	if env := readResponse(t, conn, 2*time.Second); env.MessageID != 1 {
		t.Fatalf("slow reply missing, got %d", env.MessageID)
	}
}

func TestClientCloseReleasesSession(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Latency = map[schema.RequestKind]time.Duration{
		schema.RequestWifiConnect: time.Second,
	}
	svc, srv := startService(t, cfg)
	conn := dial(t, srv, "/webmanager_ws")
	sendRequest(t, conn, 1, envelope.WifiConnectRequest{Ssid: DefaultKnownGoodSsid})

	deadline := time.Now().Add(2 * time.Second)
	for svc.Hub().Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = conn.Close()
	for svc.Hub().Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := svc.Hub().Len(); n != 0 {
		t.Fatalf("session not released, hub len=%d", n)
	}
}

func TestUpgradeOnOtherPathIsTerminated(t *testing.T) {
	testlog.Start(t)
	_, srv := startService(t, testConfig())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/health"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		_ = conn.Close()
		t.Fatalf("upgrade on /health should fail")
	}
	if resp != nil {
		t.Fatalf("expected transport termination without a response, got status %d", resp.StatusCode)
	}
}

func TestStaticDocument(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "app.html.br")
	body := []byte{0x1b, 0x02, 0x00, 0xf8}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	cfg := testConfig()
	cfg.StaticDocumentPath = path
	svc, _ := startService(t, cfg)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Fatalf("content-type=%q", ct)
	}
	if ce := rec.Header().Get("Content-Encoding"); ce != "br" {
		t.Fatalf("content-encoding=%q", ce)
	}
	if !bytes.Equal(rec.Body.Bytes(), body) {
		t.Fatalf("body mismatch")
	}

	missing, _ := startService(t, testConfig())
	rec = httptest.NewRecorder()
	missing.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing doc status=%d", rec.Code)
	}
}

func TestSensactIsUnimplemented(t *testing.T) {
	testlog.Start(t)
	svc, _ := startService(t, testConfig())
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sensact", strings.NewReader("payload")))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHealthReportsSessions(t *testing.T) {
	testlog.Start(t)
	svc, srv := startService(t, testConfig())
	dial(t, srv, "/webmanager_ws")
	deadline := time.Now().Add(2 * time.Second)
	for svc.Hub().Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "ok" || body.Sessions != 1 {
		t.Fatalf("unexpected health %+v", body)
	}

	rec = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "webmanager_session_live") {
		t.Fatalf("metrics endpoint missing live sessions gauge")
	}
}

func TestServeBroadcastsAndShutsDown(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Broadcast = BroadcasterConfig{Enabled: true, Interval: 20 * time.Millisecond, Cycle: 1}
	collab, err := DefaultCollaborators()
	if err != nil {
		t.Fatalf("collaborators: %v", err)
	}
	svc, err := NewServiceWithConfig(cfg, collab)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- svc.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/webmanager_ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	env := readResponse(t, conn, 2*time.Second)
	if env.Response.ResponseKind() != schema.NotifyLiveLogItem || env.MessageID != 0 {
		t.Fatalf("expected live log notification, got %#v", env)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if svc.Hub().Len() != 0 {
		t.Fatalf("sessions left after shutdown: %d", svc.Hub().Len())
	}
}

func TestServiceConfigValidate(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultServiceConfig()
	cfg.MetricsPath = cfg.WebsocketPath
	if _, err := NewServiceWithConfig(cfg, Collaborators{}); err == nil {
		t.Fatalf("expected shared path rejection")
	}
	cfg = DefaultServiceConfig()
	cfg.SensactPath = "sensact"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected relative path rejection")
	}
	cfg = DefaultServiceConfig()
	cfg.Latency = map[schema.RequestKind]time.Duration{schema.RequestJournal: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative latency rejection")
	}
}
