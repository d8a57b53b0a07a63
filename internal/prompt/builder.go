// Package prompt renders the annotation-service prompt for one extracted
// frame. It is a stateless text transformation; the pipeline treats it as an
// external collaborator.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"framelabel/internal/frame"
)

//go:embed default_template.txt
var defaultTemplate string

// Builder formats frames into annotation prompts using a fixed template.
type Builder struct {
	template string
}

// NewBuilder loads the template at templatePath. An empty path selects the
// embedded default; an explicit path that cannot be read is an error.
func NewBuilder(templatePath string) (Builder, error) {
	if strings.TrimSpace(templatePath) == "" {
		return Builder{template: defaultTemplate}, nil
	}
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return Builder{}, fmt.Errorf("load prompt template %s: %w", templatePath, err)
	}
	return Builder{template: string(raw)}, nil
}

// Build renders the user prompt for one frame: the template followed by the
// intent and both trajectories as readable text.
func (b Builder) Build(extracted *frame.Extracted) string {
	var sb strings.Builder
	sb.WriteString(b.template)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Current intent: %s\n", extracted.Ego.Intent)
	fmt.Fprintf(&sb, "Past trajectory (%d points):\n%s\n\n",
		len(extracted.PastTrajectory), FormatTrajectory(extracted.PastTrajectory))
	fmt.Fprintf(&sb, "Future trajectory (%d points):\n%s\n",
		len(extracted.FutureTrajectory), FormatTrajectory(extracted.FutureTrajectory))
	return sb.String()
}

// FormatTrajectory renders points as a list of (x, y, z) tuples with two
// decimals, the exact shape the annotation template documents.
func FormatTrajectory(points []frame.Point) string {
	if len(points) == 0 {
		return "[]"
	}
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
