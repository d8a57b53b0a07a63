package testsupport

import (
	"context"
	"sync"

	"framelabel/internal/annotate"
)

// ValidResult returns a schema-complete annotation result.
func ValidResult() *annotate.Result {
	objects := make(map[string]string, len(annotate.CriticalObjectClasses))
	for _, class := range annotate.CriticalObjectClasses {
		objects[class] = "no"
	}
	objects["nearby_vehicle"] = "yes"
	return &annotate.Result{
		CriticalObjects: objects,
		Explanation:     "Following a lead vehicle at steady speed.",
		MetaBehaviour:   annotate.MetaBehaviour{Speed: "keep", Command: "lane_follow"},
	}
}

// FakeAnnotator records every call and answers with a valid result unless the
// frame id is listed in FailFrames.
type FakeAnnotator struct {
	mu sync.Mutex
	// FailFrames maps frame ids to the error their calls should return.
	FailFrames map[string]error

	calls []string
}

// Annotate implements the pipeline's annotator boundary.
func (f *FakeAnnotator) Annotate(_ context.Context, req annotate.Request) (*annotate.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.FrameID)
	f.mu.Unlock()

	if err, ok := f.FailFrames[req.FrameID]; ok {
		return nil, err
	}
	return ValidResult(), nil
}

// Calls returns the frame ids annotated so far, in call order.
func (f *FakeAnnotator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
