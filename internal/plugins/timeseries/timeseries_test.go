package timeseries

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/testutil/testlog"
)

func fixedProducer() *Producer {
	return &Producer{Points: 4, Now: func() time.Time { return time.Unix(1700000123, 0) }}
}

func TestSeriesAlignedToGranularity(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		g     envelope.Granularity
		step  uint32
		start uint64
	}{
		{envelope.GranularityFiveSeconds, 5, 1700000120 - 15},
		{envelope.GranularityOneMinute, 60, 1700000100 - 180},
		{envelope.GranularityOneHour, 3600, 1699999200 - 3*3600},
	}
	for _, tc := range cases {
		s, err := fixedProducer().Series(tc.g)
		if err != nil {
			t.Fatalf("series %d: %v", tc.g, err)
		}
		if s.StepSeconds != tc.step || s.StartEpoch != tc.start || len(s.Values) != 4 {
			t.Fatalf("granularity %d: got step=%d start=%d n=%d", tc.g, s.StepSeconds, s.StartEpoch, len(s.Values))
		}
		for _, v := range s.Values {
			if v < 15 || v > 25 {
				t.Fatalf("value out of band: %v", v)
			}
		}
	}
}

func TestProduceIsEncodedPayload(t *testing.T) {
	testlog.Start(t)
	p := fixedProducer()
	payload, err := p.Produce(envelope.GranularityOneMinute)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	b, err := envelope.EncodeResponse(envelope.ResponseEnvelope{
		MessageID: 8,
		Response:  envelope.RawResponse{Kind: schema.ResponseTimeseries, Payload: payload},
	})
	if err != nil {
		t.Fatalf("encode raw: %v", err)
	}
	env, err := envelope.DecodeResponse(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want, _ := p.Series(envelope.GranularityOneMinute)
	if !reflect.DeepEqual(env.Response, want) {
		t.Fatalf("decoded %#v want %#v", env.Response, want)
	}
}

func TestUnknownGranularity(t *testing.T) {
	testlog.Start(t)
	if _, err := fixedProducer().Produce(envelope.Granularity(9)); !errors.Is(err, ErrUnknownGranularity) {
		t.Fatalf("expected ErrUnknownGranularity, got %v", err)
	}
}
