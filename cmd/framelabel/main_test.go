package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"framelabel/internal/testsupport"
)

const annotationJSON = `{
  "critical_objects": {
    "nearby_vehicle": "yes", "pedestrian": "no", "cyclist": "no",
    "construction": "no", "traffic_element": "no", "weather_condition": "no",
    "road_hazard": "no", "emergency_vehicle": "no", "animal": "no",
    "special_vehicle": "no", "conflicting_vehicle": "no",
    "door_opening_vehicle": "no"
  },
  "explanation": "Lead vehicle ahead in the same lane.",
  "meta_behaviour": {"speed": "keep", "command": "lane_follow"}
}`

// newAnnotationServer serves a fixed valid annotation and counts calls.
func newAnnotationServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		content, err := json.Marshal(annotationJSON)
		if err != nil {
			t.Errorf("marshal content: %v", err)
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}]}`, content)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

// writeTestConfig lays out a config file, a two-shard dataset, and an output
// directory under a fresh temp dir, and returns the config path.
func writeTestConfig(t *testing.T, baseURL string) (configPath, outputDir string) {
	t.Helper()
	base := t.TempDir()
	datasetDir := filepath.Join(base, "dataset")
	outputDir = filepath.Join(base, "output")

	// Two shards of ten frames each; stride 10 samples the first frame of each.
	testsupport.WriteSequentialShard(t, filepath.Join(datasetDir, "shard-a.tfrecord"), "ctx_a", 1000, 10, 4, 5)
	testsupport.WriteSequentialShard(t, filepath.Join(datasetDir, "shard-b.tfrecord"), "ctx_b", 2000, 10, 4, 5)

	body := fmt.Sprintf(`[dataset]
path = %q

[trajectory]
past_duration_seconds = 4
past_frequency_hz = 1
future_duration_seconds = 5
future_frequency_hz = 1

[annotator]
base_url = %q
api_key = "test"

[output]
dir = %q
`, filepath.Join(datasetDir, "shard-*.tfrecord"), baseURL, outputDir)

	configPath = filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, outputDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunAndResumeEndToEnd(t *testing.T) {
	t.Setenv("FRAMELABEL_API_KEY", "")
	server, calls := newAnnotationServer(t)
	configPath, outputDir := writeTestConfig(t, server.URL)

	out, err := execute(t, "run", "--config", configPath)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "processed: 2") {
		t.Fatalf("expected 2 processed frames:\n%s", out)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 annotation calls, got %d", got)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "checkpoint.json")); err != nil {
		t.Fatalf("checkpoint missing: %v", err)
	}

	out, err = execute(t, "run", "--config", configPath, "--resume")
	if err != nil {
		t.Fatalf("resume failed: %v\n%s", err, out)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("resume must make zero new calls, total went to %d", got)
	}
	if !strings.Contains(out, "skipped:   2") {
		t.Fatalf("expected 2 resume skips:\n%s", out)
	}
}

func TestRunRequiresDatasetPath(t *testing.T) {
	t.Setenv("FRAMELABEL_API_KEY", "")
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	body := fmt.Sprintf("[annotator]\napi_key = \"test\"\n\n[output]\ndir = %q\n", filepath.Join(base, "output"))
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := execute(t, "run", "--config", configPath); err == nil {
		t.Fatal("expected failure without dataset path")
	}
}

func TestInspectListsShards(t *testing.T) {
	t.Setenv("FRAMELABEL_API_KEY", "")
	server, _ := newAnnotationServer(t)
	configPath, _ := writeTestConfig(t, server.URL)

	out, err := execute(t, "inspect", "--config", configPath)
	if err != nil {
		t.Fatalf("inspect failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Shards: 2") || !strings.Contains(out, "Stride: 10") {
		t.Fatalf("unexpected inspect output:\n%s", out)
	}
	if !strings.Contains(out, "shard-a.tfrecord") {
		t.Fatalf("shard listing missing:\n%s", out)
	}
}

func TestExportAndValidateAfterRun(t *testing.T) {
	t.Setenv("FRAMELABEL_API_KEY", "")
	server, _ := newAnnotationServer(t)
	configPath, _ := writeTestConfig(t, server.URL)

	if out, err := execute(t, "run", "--config", configPath); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	exportPath := filepath.Join(t.TempDir(), "export.jsonl")
	out, err := execute(t, "export", "--config", configPath, "--out", exportPath)
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 export lines, got %d", len(lines))
	}

	out, err = execute(t, "validate", "--config", configPath)
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "pass schema validation") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}
}

func TestRunsCommandListsRun(t *testing.T) {
	t.Setenv("FRAMELABEL_API_KEY", "")
	server, _ := newAnnotationServer(t)
	configPath, _ := writeTestConfig(t, server.URL)

	if out, err := execute(t, "run", "--config", configPath); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	out, err := execute(t, "runs", "--config", configPath)
	if err != nil {
		t.Fatalf("runs failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "completed") {
		t.Fatalf("expected a completed run:\n%s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv("FRAMELABEL_API_KEY", "")
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	out, err = execute(t, "config", "show", "--config", target)
	if err != nil {
		t.Fatalf("config show failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "gemini-2.5-flash") {
		t.Fatalf("unexpected show output:\n%s", out)
	}
}
