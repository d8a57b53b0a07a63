package annotate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CriticalObjectClasses is the fixed audit list. Every response must carry a
// yes/no verdict for each class, no omissions.
var CriticalObjectClasses = []string{
	"nearby_vehicle",
	"pedestrian",
	"cyclist",
	"construction",
	"traffic_element",
	"weather_condition",
	"road_hazard",
	"emergency_vehicle",
	"animal",
	"special_vehicle",
	"conflicting_vehicle",
	"door_opening_vehicle",
}

// Speed labels for meta_behaviour.speed.
var speedLabels = map[string]struct{}{
	"keep": {}, "accelerate": {}, "decelerate": {}, "other": {},
}

// Command labels for meta_behaviour.command.
var commandLabels = map[string]struct{}{
	"straight": {}, "yield": {}, "left_turn": {}, "right_turn": {},
	"lane_follow": {}, "lane_change_left": {}, "lane_change_right": {},
	"reverse": {}, "other": {},
}

// MetaBehaviour summarizes the expert future trajectory.
type MetaBehaviour struct {
	Speed   string `json:"speed"`
	Command string `json:"command"`
}

// Result is the validated annotation for one frame.
type Result struct {
	CriticalObjects map[string]string `json:"critical_objects"`
	Explanation     string            `json:"explanation"`
	MetaBehaviour   MetaBehaviour     `json:"meta_behaviour"`
}

// Validate returns the full list of schema violations, empty when the result
// is structurally sound. The same check is applied to live responses and to
// persisted result files.
func (r *Result) Validate() []string {
	if r == nil {
		return []string{"result is empty"}
	}
	var violations []string

	if r.CriticalObjects == nil {
		violations = append(violations, "critical_objects is missing")
	} else {
		for _, class := range CriticalObjectClasses {
			verdict, ok := r.CriticalObjects[class]
			if !ok {
				violations = append(violations, fmt.Sprintf("critical_objects.%s is missing", class))
				continue
			}
			if verdict != "yes" && verdict != "no" {
				violations = append(violations, fmt.Sprintf("critical_objects.%s must be yes or no, got %q", class, verdict))
			}
		}
		known := make(map[string]struct{}, len(CriticalObjectClasses))
		for _, class := range CriticalObjectClasses {
			known[class] = struct{}{}
		}
		var extras []string
		for class := range r.CriticalObjects {
			if _, ok := known[class]; !ok {
				extras = append(extras, class)
			}
		}
		sort.Strings(extras)
		for _, class := range extras {
			violations = append(violations, fmt.Sprintf("critical_objects.%s is not an audited class", class))
		}
	}

	if strings.TrimSpace(r.Explanation) == "" {
		violations = append(violations, "explanation is empty")
	}
	if _, ok := speedLabels[r.MetaBehaviour.Speed]; !ok {
		violations = append(violations, fmt.Sprintf("meta_behaviour.speed %q is not a known label", r.MetaBehaviour.Speed))
	}
	if _, ok := commandLabels[r.MetaBehaviour.Command]; !ok {
		violations = append(violations, fmt.Sprintf("meta_behaviour.command %q is not a known label", r.MetaBehaviour.Command))
	}
	return violations
}

// ParseResult extracts and validates a Result from raw response text. The
// service may wrap the JSON object in commentary, so parsing locates the
// first '{' and the last '}' before decoding.
func ParseResult(text string) (*Result, []string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, nil, errors.New("no JSON object found in response")
	}

	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, nil, fmt.Errorf("decode response JSON: %w", err)
	}
	if violations := result.Validate(); len(violations) > 0 {
		return nil, violations, nil
	}
	return &result, nil, nil
}
