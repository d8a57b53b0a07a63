// Package results persists per-frame annotation records, the resume
// checkpoint, and the end-of-run summary.
//
// Result writes are idempotent per frame id, and the checkpoint is always
// written to a temporary file and renamed into place so a crash mid-write
// leaves the previous complete checkpoint intact.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"framelabel/internal/annotate"
	"framelabel/internal/frame"
	"framelabel/internal/logging"
	"framelabel/internal/services"
)

const (
	resultSuffix    = ".json"
	summaryFilename = "summary.json"
)

// Metadata describes how and when a frame was annotated.
type Metadata struct {
	FrameName           string `json:"frame_name"`
	TimestampMicros     int64  `json:"timestamp_micros"`
	ProcessingTimestamp string `json:"processing_timestamp"`
	ModelName           string `json:"model_name"`
	ImageMode           string `json:"image_mode"`
}

// EgoStatus mirrors frame.EgoStatus in the persisted record.
type EgoStatus struct {
	Velocity [2]float64 `json:"velocity"`
	Speed    float64    `json:"speed"`
	Intent   string     `json:"intent"`
}

// InputData is the extracted frame state that produced the annotation.
type InputData struct {
	PastTrajectory   [][3]float64 `json:"past_trajectory"`
	FutureTrajectory [][3]float64 `json:"future_trajectory"`
	EgoStatus        EgoStatus    `json:"ego_status"`
}

// Record is the full result document written per frame.
type Record struct {
	Metadata    Metadata         `json:"metadata"`
	InputData   InputData        `json:"input_data"`
	VLMResponse *annotate.Result `json:"vlm_response"`
}

// Checkpoint is the on-disk resume state. processed_frames is kept sorted so
// successive checkpoints of the same set are byte-identical.
type Checkpoint struct {
	LastUpdated     string   `json:"last_updated"`
	TotalProcessed  int      `json:"total_processed"`
	ProcessedFrames []string `json:"processed_frames"`
}

// Summary is written once at run end.
type Summary struct {
	RunID       string  `json:"run_id"`
	CompletedAt string  `json:"completed_at"`
	Interrupted bool    `json:"interrupted"`
	TotalFrames int     `json:"total_frames"`
	Processed   int     `json:"processed"`
	Skipped     int     `json:"skipped"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Store owns the results directory and the checkpoint file.
type Store struct {
	resultsDir     string
	checkpointPath string
	logger         *slog.Logger
}

// NewStore creates the results directory if needed and returns a store.
func NewStore(resultsDir, checkpointPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "results", "create results dir", resultsDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(checkpointPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "results", "create checkpoint dir", checkpointPath, err)
	}
	return &Store{
		resultsDir:     resultsDir,
		checkpointPath: checkpointPath,
		logger:         logging.NewComponentLogger(logger, "results"),
	}, nil
}

// ResultsDir returns the directory holding per-frame records.
func (s *Store) ResultsDir() string {
	return s.resultsDir
}

// BuildRecord assembles the persisted document from extracted frame state and
// a validated annotation.
func BuildRecord(extracted *frame.Extracted, result *annotate.Result, modelName, imageMode string, processedAt time.Time) *Record {
	return &Record{
		Metadata: Metadata{
			FrameName:           extracted.FrameID,
			TimestampMicros:     extracted.TimestampMicros,
			ProcessingTimestamp: processedAt.UTC().Format(time.RFC3339),
			ModelName:           modelName,
			ImageMode:           imageMode,
		},
		InputData: InputData{
			PastTrajectory:   flattenTrajectory(extracted.PastTrajectory),
			FutureTrajectory: flattenTrajectory(extracted.FutureTrajectory),
			EgoStatus: EgoStatus{
				Velocity: extracted.Ego.Velocity,
				Speed:    extracted.Ego.Speed,
				Intent:   extracted.Ego.Intent,
			},
		},
		VLMResponse: result,
	}
}

func flattenTrajectory(points []frame.Point) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return out
}

// SaveResult writes the record for one frame. Calling it again for the same
// frame id overwrites the previous file whole; a partial write never replaces
// an existing record because the content lands under a temporary name first.
func (s *Store) SaveResult(frameID string, record *Record) error {
	if strings.TrimSpace(frameID) == "" {
		return services.Wrap(services.ErrValidation, "results", "save result", "frame id required", nil)
	}
	path := s.resultPath(frameID)
	if err := writeJSONAtomic(path, record); err != nil {
		return services.Wrap(services.ErrPersistence, "results", "save result", frameID, err)
	}
	return nil
}

// LoadRecord reads one persisted record back.
func (s *Store) LoadRecord(frameID string) (*Record, error) {
	data, err := os.ReadFile(s.resultPath(frameID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "results", "load record", frameID, err)
		}
		return nil, services.Wrap(services.ErrPersistence, "results", "load record", frameID, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, services.Wrap(services.ErrValidation, "results", "load record", frameID, err)
	}
	return &record, nil
}

// FrameIDs lists the frame ids with a persisted record, sorted.
func (s *Store) FrameIDs() ([]string, error) {
	entries, err := os.ReadDir(s.resultsDir)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "results", "list results", s.resultsDir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, resultSuffix) || name == summaryFilename {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, resultSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveCheckpoint atomically replaces the checkpoint with the given set.
func (s *Store) SaveCheckpoint(processed map[string]struct{}) error {
	ids := make([]string, 0, len(processed))
	for id := range processed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	checkpoint := Checkpoint{
		LastUpdated:     time.Now().UTC().Format(time.RFC3339),
		TotalProcessed:  len(ids),
		ProcessedFrames: ids,
	}
	if err := writeJSONAtomic(s.checkpointPath, &checkpoint); err != nil {
		return services.Wrap(services.ErrPersistence, "results", "save checkpoint", s.checkpointPath, err)
	}
	return nil
}

// LoadCheckpoint returns the processed-frame set. A missing checkpoint means
// a fresh run. A checkpoint that cannot be parsed, or whose count disagrees
// with its list, degrades to a fresh run with a warning rather than aborting.
func (s *Store) LoadCheckpoint() (map[string]struct{}, error) {
	data, err := os.ReadFile(s.checkpointPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, services.Wrap(services.ErrPersistence, "results", "load checkpoint", s.checkpointPath, err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		s.logger.Warn("checkpoint unreadable, starting fresh",
			logging.String(logging.FieldCheckpoint, s.checkpointPath),
			logging.Error(err))
		return map[string]struct{}{}, nil
	}
	if checkpoint.TotalProcessed != len(checkpoint.ProcessedFrames) {
		s.logger.Warn("checkpoint count mismatch, starting fresh",
			logging.String(logging.FieldCheckpoint, s.checkpointPath),
			logging.Int("recorded_total", checkpoint.TotalProcessed),
			logging.Int("listed_frames", len(checkpoint.ProcessedFrames)))
		return map[string]struct{}{}, nil
	}

	processed := make(map[string]struct{}, len(checkpoint.ProcessedFrames))
	for _, id := range checkpoint.ProcessedFrames {
		processed[id] = struct{}{}
	}
	return processed, nil
}

// WriteSummary records the final run totals next to the checkpoint.
func (s *Store) WriteSummary(summary *Summary) error {
	path := filepath.Join(filepath.Dir(s.checkpointPath), summaryFilename)
	if err := writeJSONAtomic(path, summary); err != nil {
		return services.Wrap(services.ErrPersistence, "results", "write summary", path, err)
	}
	return nil
}

// LoadSummary reads the summary back, for the report command.
func (s *Store) LoadSummary() (*Summary, error) {
	path := filepath.Join(filepath.Dir(s.checkpointPath), summaryFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "results", "load summary", path, err)
		}
		return nil, services.Wrap(services.ErrPersistence, "results", "load summary", path, err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, services.Wrap(services.ErrValidation, "results", "load summary", path, err)
	}
	return &summary, nil
}

func (s *Store) resultPath(frameID string) string {
	return filepath.Join(s.resultsDir, frameID+resultSuffix)
}

// writeJSONAtomic writes to a temporary sibling and renames it over the
// target. Rename within one directory is atomic on POSIX filesystems.
func writeJSONAtomic(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}
