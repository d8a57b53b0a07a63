package frame

import (
	"fmt"
	"math"
)

// Point is one trajectory sample in ego-centric coordinates.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Intent labels mirror the dataset's driving-intent enum.
const (
	IntentUnknown    = "UNKNOWN"
	IntentGoStraight = "GO_STRAIGHT"
	IntentGoLeft     = "GO_LEFT"
	IntentGoRight    = "GO_RIGHT"
)

var intentLabels = map[int]string{
	0: IntentUnknown,
	1: IntentGoStraight,
	2: IntentGoLeft,
	3: IntentGoRight,
}

// IntentLabel maps the raw intent code to its label. Unknown codes map to
// UNKNOWN rather than failing, matching the dataset convention.
func IntentLabel(code int) string {
	if label, ok := intentLabels[code]; ok {
		return label
	}
	return IntentUnknown
}

// EgoStatus is the vehicle state at the decision point.
type EgoStatus struct {
	// Velocity is the last observed (vx, vy) pair.
	Velocity [2]float64
	Speed    float64
	Intent   string
}

// Extracted is the structured, validated form of one sampled frame.
type Extracted struct {
	// FrameID is the durable identity used for persistence and resume
	// membership, derived from the source context and timestamp.
	FrameID          string
	ContextName      string
	TimestampMicros  int64
	PastTrajectory   []Point
	FutureTrajectory []Point
	Ego              EgoStatus
}

// FrameID derives the durable frame identity from source context and
// timestamp. Both parts are required for global uniqueness: contexts repeat
// across frames and timestamps repeat across contexts.
func FrameID(contextName string, timestampMicros int64) string {
	return fmt.Sprintf("%s_%d", contextName, timestampMicros)
}

func speed(vx, vy float64) float64 {
	return math.Hypot(vx, vy)
}
