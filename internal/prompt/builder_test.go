package prompt_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framelabel/internal/frame"
	"framelabel/internal/prompt"
)

func sampleFrame() *frame.Extracted {
	return &frame.Extracted{
		FrameID: "ctx_1",
		Ego:     frame.EgoStatus{Intent: frame.IntentGoLeft},
		PastTrajectory: []frame.Point{
			{X: 1.234, Y: -2.5, Z: 0.01},
			{X: 2, Y: -2, Z: 0},
		},
		FutureTrajectory: []frame.Point{
			{X: 3, Y: 0, Z: 0},
		},
	}
}

func TestBuildIncludesTemplateAndState(t *testing.T) {
	builder, err := prompt.NewBuilder("")
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	rendered := builder.Build(sampleFrame())
	if !strings.Contains(rendered, "expert labeller of driving scenarios") {
		t.Fatal("missing embedded template text")
	}
	if !strings.Contains(rendered, "Current intent: GO_LEFT") {
		t.Fatalf("missing intent line:\n%s", rendered)
	}
	if !strings.Contains(rendered, "(1.23, -2.50, 0.01)") {
		t.Fatalf("missing formatted trajectory point:\n%s", rendered)
	}
}

func TestNewBuilderLoadsCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.txt")
	if err := os.WriteFile(path, []byte("CUSTOM TEMPLATE"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	builder, err := prompt.NewBuilder(path)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	if !strings.HasPrefix(builder.Build(sampleFrame()), "CUSTOM TEMPLATE") {
		t.Fatal("custom template not used")
	}
}

func TestNewBuilderMissingTemplateFails(t *testing.T) {
	if _, err := prompt.NewBuilder(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing template file")
	}
}

func TestFormatTrajectoryEmpty(t *testing.T) {
	if got := prompt.FormatTrajectory(nil); got != "[]" {
		t.Fatalf("FormatTrajectory(nil) = %q", got)
	}
}
