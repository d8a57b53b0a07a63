// Package report reads persisted result records back for aggregation,
// re-validation, and export.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"framelabel/internal/annotate"
	"framelabel/internal/results"
	"framelabel/internal/services"
)

// Report aggregates the persisted results of an output directory.
type Report struct {
	TotalResults  int
	SpeedCounts   map[string]int
	CommandCounts map[string]int
	// ObjectCounts counts "yes" verdicts per critical-object class.
	ObjectCounts map[string]int
	IntentCounts map[string]int
}

// Aggregate walks every result record and tallies behaviour and
// critical-object distributions.
func Aggregate(store *results.Store) (*Report, error) {
	ids, err := store.FrameIDs()
	if err != nil {
		return nil, err
	}

	report := &Report{
		SpeedCounts:   map[string]int{},
		CommandCounts: map[string]int{},
		ObjectCounts:  map[string]int{},
		IntentCounts:  map[string]int{},
	}
	for _, id := range ids {
		record, err := store.LoadRecord(id)
		if err != nil {
			return nil, err
		}
		report.TotalResults++
		report.IntentCounts[record.InputData.EgoStatus.Intent]++
		if record.VLMResponse == nil {
			continue
		}
		report.SpeedCounts[record.VLMResponse.MetaBehaviour.Speed]++
		report.CommandCounts[record.VLMResponse.MetaBehaviour.Command]++
		for class, verdict := range record.VLMResponse.CriticalObjects {
			if verdict == "yes" {
				report.ObjectCounts[class]++
			}
		}
	}
	return report, nil
}

// exportLine flattens one record with its frame id for JSONL output.
type exportLine struct {
	FrameID string `json:"frame_id"`
	*results.Record
}

// ExportJSONL writes one JSON line per result record in frame-id order and
// returns the number of lines written.
func ExportJSONL(store *results.Store, w io.Writer) (int, error) {
	ids, err := store.FrameIDs()
	if err != nil {
		return 0, err
	}

	encoder := json.NewEncoder(w)
	count := 0
	for _, id := range ids {
		record, err := store.LoadRecord(id)
		if err != nil {
			return count, err
		}
		if err := encoder.Encode(exportLine{FrameID: id, Record: record}); err != nil {
			return count, services.Wrap(services.ErrPersistence, "report", "export", id, err)
		}
		count++
	}
	return count, nil
}

// Issue is one result file that fails schema validation.
type Issue struct {
	FrameID    string
	Violations []string
}

// ValidateAll re-validates every persisted record against the annotation
// response schema, in frame-id order.
func ValidateAll(store *results.Store) ([]Issue, int, error) {
	ids, err := store.FrameIDs()
	if err != nil {
		return nil, 0, err
	}

	var issues []Issue
	for _, id := range ids {
		record, err := store.LoadRecord(id)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				issues = append(issues, Issue{FrameID: id, Violations: []string{fmt.Sprintf("unreadable record: %v", err)}})
				continue
			}
			return nil, 0, err
		}
		if record.VLMResponse == nil {
			issues = append(issues, Issue{FrameID: id, Violations: []string{"vlm_response is missing"}})
			continue
		}
		if violations := record.VLMResponse.Validate(); len(violations) > 0 {
			issues = append(issues, Issue{FrameID: id, Violations: violations})
		}
	}
	return issues, len(ids), nil
}

// Classes returns the audited critical-object classes in schema order, for
// stable table rendering.
func Classes() []string {
	return append([]string(nil), annotate.CriticalObjectClasses...)
}
