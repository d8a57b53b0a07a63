package services_test

import (
	"errors"
	"testing"

	"framelabel/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "extractor", "validate frame", "expected 16 past points, got 15", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if got := services.Kind(err); got != "validation" {
		t.Fatalf("Kind = %q, want validation", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := services.Wrap(services.ErrPersistence, "results", "save checkpoint", "", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !services.IsFatal(err) {
		t.Fatal("persistence errors must be fatal to the run")
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		marker error
		want   string
		fatal  bool
	}{
		{services.ErrNotFound, "not_found", true},
		{services.ErrValidation, "validation", false},
		{services.ErrConfiguration, "configuration", true},
		{services.ErrTransient, "transient", false},
		{services.ErrFatalService, "service_fatal", false},
		{services.ErrSchema, "response_schema", false},
		{services.ErrPersistence, "persistence", true},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "c", "op", "", nil)
		if got := services.Kind(err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.marker, got, tc.want)
		}
		if got := services.IsFatal(err); got != tc.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tc.marker, got, tc.fatal)
		}
	}
}

func TestNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "annotator", "call", "", errors.New("boom"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}
