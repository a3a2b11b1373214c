// Package timeseries produces synthetic series for the time-series request.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/danmuck/webmanager/internal/protocol/envelope"
)

var ErrUnknownGranularity = errors.New("timeseries: unknown granularity")

// DefaultPoints is the series length when Producer.Points is unset.
const DefaultPoints = 60

// Producer renders a series ending at the current bucket.
type Producer struct {
	Points int
	Now    func() time.Time
}

func NewProducer() *Producer {
	return &Producer{Points: DefaultPoints, Now: time.Now}
}

// Produce returns the encoded payload of a timeseries response for g.
func (p *Producer) Produce(g envelope.Granularity) ([]byte, error) {
	resp, err := p.Series(g)
	if err != nil {
		return nil, err
	}
	return envelope.EncodePayload(resp), nil
}

// Series returns the typed series for g. Values follow a daily sine around 20.
func (p *Producer) Series(g envelope.Granularity) (envelope.TimeseriesResponse, error) {
	if g > envelope.GranularityOneDay {
		return envelope.TimeseriesResponse{}, fmt.Errorf("%w: %d", ErrUnknownGranularity, g)
	}
	points := p.Points
	if points <= 0 {
		points = DefaultPoints
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	step := uint64(g.Step())
	end := uint64(now().Unix()) / step * step
	start := end - step*uint64(points-1)

	values := make([]float32, points)
	for i := range values {
		ts := float64(start + uint64(i)*step)
		values[i] = float32(20 + 5*math.Sin(2*math.Pi*ts/86400))
	}
	return envelope.TimeseriesResponse{
		Granularity: g,
		StartEpoch:  start,
		StepSeconds: uint32(step),
		Values:      values,
	}, nil
}
