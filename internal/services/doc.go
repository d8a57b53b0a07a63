// Package services defines the shared error taxonomy and context helpers
// used by pipeline components.
//
// Errors are tagged with sentinel markers so the coordinator can decide,
// without inspecting messages, whether a failure aborts the run, fails a
// single frame, or merely skips it.
package services
