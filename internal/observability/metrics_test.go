package observability

import (
	"testing"
	"time"

	"github.com/danmuck/webmanager/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordOutboundFrame("journal")
	RecordCompletion("journal", 100*time.Millisecond)
	RecordBroadcast(true)
	RecordBroadcast(false)
	RecordCancelledCompletions(0)
	SetLiveSessions(2)

	if got := testutil.ToFloat64(liveSessions); got != 2 {
		t.Fatalf("live sessions gauge=%v", got)
	}
}

func TestInboundFrameCounterByResult(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(inboundFrames.WithLabelValues(FrameUnknown))
	RecordInboundFrame(FrameUnknown)
	RecordInboundFrame(FrameUnknown)
	if got := testutil.ToFloat64(inboundFrames.WithLabelValues(FrameUnknown)); got != before+2 {
		t.Fatalf("unknown frames=%v want %v", got, before+2)
	}
}

func TestCancelledCompletionsIgnoresNonPositive(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(cancelledCompletions)
	RecordCancelledCompletions(-1)
	RecordCancelledCompletions(3)
	if got := testutil.ToFloat64(cancelledCompletions); got != before+3 {
		t.Fatalf("cancelled=%v want %v", got, before+3)
	}
	if err := prometheus.DefaultRegisterer.Register(cancelledCompletions); err == nil {
		t.Fatalf("expected duplicate registration to be rejected")
	}
}
