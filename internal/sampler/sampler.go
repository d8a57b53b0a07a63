// Package sampler decides which global frame indices are included when
// subsampling a fixed-rate stream to a lower target rate.
//
// Inclusion is a pure function of the index and the configured stride, which
// is what makes resume correct: re-deriving the decision for an index always
// agrees with the original run.
package sampler

import (
	"fmt"

	"framelabel/internal/services"
)

// Sampler includes every stride-th frame of the source stream.
type Sampler struct {
	stride int
}

// New derives the stride from the source and target rates. The target rate
// must divide evenly into the source rate.
func New(sourceRateHz, targetRateHz int) (Sampler, error) {
	if sourceRateHz <= 0 || targetRateHz <= 0 {
		return Sampler{}, services.Wrap(services.ErrConfiguration, "sampler", "new",
			fmt.Sprintf("rates must be positive, got source=%d target=%d", sourceRateHz, targetRateHz), nil)
	}
	if sourceRateHz%targetRateHz != 0 {
		return Sampler{}, services.Wrap(services.ErrConfiguration, "sampler", "new",
			fmt.Sprintf("target rate %dHz must divide evenly into source rate %dHz", targetRateHz, sourceRateHz), nil)
	}
	return Sampler{stride: sourceRateHz / targetRateHz}, nil
}

// Stride returns the fixed spacing between included frame indices.
func (s Sampler) Stride() int {
	return s.stride
}

// Included reports whether the frame at globalIndex is part of the sample.
func (s Sampler) Included(globalIndex int64) bool {
	if globalIndex < 0 {
		return false
	}
	return globalIndex%int64(s.stride) == 0
}
