package pipeline

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/mipsim/arch"
)

// HazardUnit classifies the stalls executions report and tallies them.
type HazardUnit struct {
	// RAW counts cycles lost waiting for a source value.
	RAW uint64
	// WAW counts cycles lost waiting for a destination to be released.
	WAW uint64
}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// Observe reports whether err asks for the phase to be retried, and counts
// the stall.
func (h *HazardUnit) Observe(err error) bool {
	var stall *arch.StallError
	if !errors.As(err, &stall) {
		return false
	}

	switch stall.Kind {
	case arch.StallWAW:
		h.WAW++
	default:
		h.RAW++
	}
	return true
}

// Reset clears the tallies.
func (h *HazardUnit) Reset() {
	*h = HazardUnit{}
}
