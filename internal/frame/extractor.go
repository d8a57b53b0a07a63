package frame

import (
	"encoding/json"
	"fmt"
	"strings"

	"framelabel/internal/services"
)

// record is the wire shape of one frame payload inside a shard.
type record struct {
	ContextName     string      `json:"context_name"`
	TimestampMicros int64       `json:"timestamp_micros"`
	Intent          int         `json:"intent"`
	PastStates      stateSeries `json:"past_states"`
	FutureStates    stateSeries `json:"future_states"`
}

type stateSeries struct {
	PosX []float64 `json:"pos_x"`
	PosY []float64 `json:"pos_y"`
	PosZ []float64 `json:"pos_z"`
	VelX []float64 `json:"vel_x,omitempty"`
	VelY []float64 `json:"vel_y,omitempty"`
}

// Extractor decodes raw frame payloads and enforces the configured
// trajectory shape.
type Extractor struct {
	expectedPast   int
	expectedFuture int
}

// NewExtractor builds an extractor that requires exactly expectedPast past
// points and expectedFuture future points per frame.
func NewExtractor(expectedPast, expectedFuture int) Extractor {
	return Extractor{expectedPast: expectedPast, expectedFuture: expectedFuture}
}

// Extract decodes one raw record and validates structural completeness.
// Any failure carries the validation marker so the coordinator skips the
// frame without aborting the run.
func (e Extractor) Extract(raw []byte) (*Extracted, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, services.Wrap(services.ErrValidation, "extractor", "decode frame", "", err)
	}
	if strings.TrimSpace(rec.ContextName) == "" {
		return nil, e.invalid("missing context_name", rec)
	}
	if rec.TimestampMicros <= 0 {
		return nil, e.invalid("missing or non-positive timestamp_micros", rec)
	}

	past, err := e.trajectory("past", rec.PastStates, e.expectedPast)
	if err != nil {
		return nil, e.invalid(err.Error(), rec)
	}
	future, err := e.trajectory("future", rec.FutureStates, e.expectedFuture)
	if err != nil {
		return nil, e.invalid(err.Error(), rec)
	}

	var vx, vy float64
	if n := len(rec.PastStates.VelX); n > 0 {
		vx = rec.PastStates.VelX[n-1]
	}
	if n := len(rec.PastStates.VelY); n > 0 {
		vy = rec.PastStates.VelY[n-1]
	}

	return &Extracted{
		FrameID:          FrameID(rec.ContextName, rec.TimestampMicros),
		ContextName:      rec.ContextName,
		TimestampMicros:  rec.TimestampMicros,
		PastTrajectory:   past,
		FutureTrajectory: future,
		Ego: EgoStatus{
			Velocity: [2]float64{vx, vy},
			Speed:    speed(vx, vy),
			Intent:   IntentLabel(rec.Intent),
		},
	}, nil
}

func (e Extractor) trajectory(name string, series stateSeries, expected int) ([]Point, error) {
	nx, ny, nz := len(series.PosX), len(series.PosY), len(series.PosZ)
	if nx != ny || nx != nz {
		return nil, fmt.Errorf("%s trajectory arrays have mismatched lengths: pos_x=%d, pos_y=%d, pos_z=%d",
			name, nx, ny, nz)
	}
	if nx != expected {
		return nil, fmt.Errorf("expected %d %s-trajectory points, got %d", expected, name, nx)
	}

	points := make([]Point, nx)
	for i := range points {
		points[i] = Point{X: series.PosX[i], Y: series.PosY[i], Z: series.PosZ[i]}
	}
	return points, nil
}

func (e Extractor) invalid(reason string, rec record) error {
	identity := rec.ContextName
	if identity == "" {
		identity = "<unnamed>"
	}
	return services.Wrap(services.ErrValidation, "extractor", "validate frame",
		fmt.Sprintf("%s: %s", identity, reason), nil)
}

// EncodeRecord serializes a frame record payload in the shard wire shape.
// Tooling and tests use it to synthesize datasets.
func EncodeRecord(contextName string, timestampMicros int64, intent int,
	past, future []Point, velX, velY []float64) ([]byte, error) {
	rec := record{
		ContextName:     contextName,
		TimestampMicros: timestampMicros,
		Intent:          intent,
		PastStates:      toSeries(past, velX, velY),
		FutureStates:    toSeries(future, nil, nil),
	}
	return json.Marshal(rec)
}

func toSeries(points []Point, velX, velY []float64) stateSeries {
	series := stateSeries{
		PosX: make([]float64, len(points)),
		PosY: make([]float64, len(points)),
		PosZ: make([]float64, len(points)),
		VelX: velX,
		VelY: velY,
	}
	for i, p := range points {
		series.PosX[i] = p.X
		series.PosY[i] = p.Y
		series.PosZ[i] = p.Z
	}
	return series
}
