package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"framelabel/internal/frame"
	"framelabel/internal/shardset"
)

// FramePayload builds one wire-shape frame record whose trajectory lengths
// match the given shape. Positions are derived from the timestamp so frames
// are distinguishable in assertions.
func FramePayload(t testing.TB, contextName string, timestampMicros int64, past, future int) []byte {
	t.Helper()

	pastPoints := make([]frame.Point, past)
	velX := make([]float64, past)
	velY := make([]float64, past)
	for i := range pastPoints {
		pastPoints[i] = frame.Point{X: float64(timestampMicros) + float64(i), Y: float64(i), Z: 0}
		velX[i] = 1.0
		velY[i] = 0.5
	}
	futurePoints := make([]frame.Point, future)
	for i := range futurePoints {
		futurePoints[i] = frame.Point{X: float64(timestampMicros) + float64(past+i), Y: 0, Z: 0}
	}

	payload, err := frame.EncodeRecord(contextName, timestampMicros, 1, pastPoints, futurePoints, velX, velY)
	if err != nil {
		t.Fatalf("encode frame record: %v", err)
	}
	return payload
}

// WriteShard writes the payloads to path in the shard container format.
func WriteShard(t testing.TB, path string, payloads ...[]byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	for _, payload := range payloads {
		if err := shardset.AppendRecord(f, payload); err != nil {
			t.Fatalf("append record to %s: %v", path, err)
		}
	}
}

// WriteSequentialShard writes frameCount valid frames to path, with
// timestamps firstTimestamp, firstTimestamp+1, ... and the given trajectory
// shape. Returns the frame ids in storage order.
func WriteSequentialShard(t testing.TB, path, contextName string, firstTimestamp int64, frameCount, past, future int) []string {
	t.Helper()

	payloads := make([][]byte, frameCount)
	ids := make([]string, frameCount)
	for i := 0; i < frameCount; i++ {
		ts := firstTimestamp + int64(i)
		payloads[i] = FramePayload(t, contextName, ts, past, future)
		ids[i] = fmt.Sprintf("%s_%d", contextName, ts)
	}
	WriteShard(t, path, payloads...)
	return ids
}
