package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"framelabel/internal/services"
)

const validResponseJSON = `{
  "critical_objects": {
    "nearby_vehicle": "yes",
    "pedestrian": "no",
    "cyclist": "no",
    "construction": "no",
    "traffic_element": "yes",
    "weather_condition": "no",
    "road_hazard": "no",
    "emergency_vehicle": "no",
    "animal": "no",
    "special_vehicle": "no",
    "conflicting_vehicle": "no",
    "door_opening_vehicle": "no"
  },
  "explanation": "Lead vehicle ahead, signal is green.",
  "meta_behaviour": {"speed": "keep", "command": "straight"}
}`

func completionBody(content string) string {
	encoded, err := json.Marshal(content)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf(`{"choices":[{"message":{"content":%s}}]}`, encoded)
}

func newTestClient(t *testing.T, url string, maxRetries int, delays *[]time.Duration) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:      url,
		Model:        "gemini-2.5-flash",
		APIKey:       "test-key",
		SystemPrompt: "You label driving frames.",
		MaxRetries:   maxRetries,
		RetryDelay:   2 * time.Second,
	}, WithSleeper(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}))
}

func TestAnnotateParsesWrappedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		content := "Sure, here is the annotation:\n" + validResponseJSON + "\nLet me know if you need more."
		fmt.Fprint(w, completionBody(content))
	}))
	defer server.Close()

	var delays []time.Duration
	client := newTestClient(t, server.URL, 3, &delays)

	result, err := client.Annotate(context.Background(), Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if result.CriticalObjects["nearby_vehicle"] != "yes" {
		t.Fatalf("unexpected critical objects: %v", result.CriticalObjects)
	}
	if result.MetaBehaviour.Command != "straight" {
		t.Fatalf("unexpected command %q", result.MetaBehaviour.Command)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no backoff waits, got %v", delays)
	}
}

func TestAnnotateRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	var delays []time.Duration
	client := newTestClient(t, server.URL, 3, &delays)

	_, err := client.Annotate(context.Background(), Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d backoff waits, got %v", len(want), delays)
	}
	for i, d := range want {
		if delays[i] != d {
			t.Fatalf("backoff wait %d = %v, want %v", i, delays[i], d)
		}
	}
}

func TestAnnotateRetriesPerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
	}))
	defer server.Close()
	defer close(release)

	var delays []time.Duration
	client := NewClient(Config{
		BaseURL:      server.URL,
		Model:        "gemini-2.5-flash",
		APIKey:       "test-key",
		SystemPrompt: "You label driving frames.",
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		Timeout:      50 * time.Millisecond,
	}, WithSleeper(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}))

	_, err := client.Annotate(context.Background(), Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("per-attempt timeout must be transient, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d backoff waits, got %v", len(want), delays)
	}
	for i, d := range want {
		if delays[i] != d {
			t.Fatalf("backoff wait %d = %v, want %v", i, delays[i], d)
		}
	}
}

func TestAnnotateStopsWhenCallerCancels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(validResponseJSON))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var delays []time.Duration
	client := newTestClient(t, server.URL, 3, &delays)

	_, err := client.Annotate(ctx, Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error on cancellation, got %v", err)
	}
	if errors.Is(err, services.ErrFatalService) {
		t.Fatalf("cancellation must not look like a service rejection: %v", err)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no backoff waits, got %v", delays)
	}
}

func TestAnnotateRecoversMidway(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionBody(validResponseJSON))
	}))
	defer server.Close()

	var delays []time.Duration
	client := newTestClient(t, server.URL, 3, &delays)

	result, err := client.Annotate(context.Background(), Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected result after recovery")
	}
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Fatalf("expected one 2s wait, got %v", delays)
	}
}

func TestAnnotateDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	var delays []time.Duration
	client := newTestClient(t, server.URL, 3, &delays)

	_, err := client.Annotate(context.Background(), Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if !errors.Is(err, services.ErrFatalService) {
		t.Fatalf("expected fatal service error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("auth failure should not retry, got %d attempts", got)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no waits, got %v", delays)
	}
}

func TestAnnotateDoesNotRetrySchemaFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, completionBody(`{"explanation": "missing everything else"}`))
	}))
	defer server.Close()

	var delays []time.Duration
	client := newTestClient(t, server.URL, 3, &delays)

	_, err := client.Annotate(context.Background(), Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("schema failure should not retry, got %d attempts", got)
	}
}

func TestAnnotateReportsEmptyChoiceList(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	var delays []time.Duration
	client := newTestClient(t, server.URL, 3, &delays)

	_, err := client.Annotate(context.Background(), Request{FrameID: "ctx_1", UserPrompt: "label this"})
	if !errors.Is(err, services.ErrFatalService) {
		t.Fatalf("expected fatal service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("expected no-choices detail, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("empty choice list should not retry, got %d attempts", got)
	}
}

func TestAnnotateRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", Model: "m", MaxRetries: 3})
	_, err := client.Annotate(context.Background(), Request{FrameID: "f", UserPrompt: "p"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{-1, 0},
	}
	for _, tc := range cases {
		if got := policy.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
