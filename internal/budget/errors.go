package budget

import (
	"errors"
	"fmt"
)

// ValidationError reports an invalid or incomplete budget request. It is
// terminal: the run fails before any pipeline stage executes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// ExtractionError reports that the language model could not produce a usable
// parameter set from the request text, after the corrective retry.
type ExtractionError struct {
	Provider string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("parameter extraction failed (provider %s): %v", e.Provider, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StructureResolutionError reports that neither the base budget lookup nor
// structure generation produced a valid work item set.
type StructureResolutionError struct {
	Standard string
	Err      error
}

func (e *StructureResolutionError) Error() string {
	return fmt.Sprintf("structure resolution failed for standard %q: %v", e.Standard, e.Err)
}

func (e *StructureResolutionError) Unwrap() error { return e.Err }

// NoMatchError reports that no catalog composition cleared the acceptance
// threshold for one work item. Per-item and non-fatal: the item becomes a
// flagged zero-priced line.
type NoMatchError struct {
	ItemName string
	Best     float64
}

func (e *NoMatchError) Error() string {
	if e.Best > 0 {
		return fmt.Sprintf("no catalog match for %q (best similarity %.2f)", e.ItemName, e.Best)
	}
	return fmt.Sprintf("no catalog match for %q", e.ItemName)
}

// PriceNotFoundError reports that no price exists for a composition within
// the lookback window. Per-item and non-fatal.
type PriceNotFoundError struct {
	CompositionCode string
	State           string
	Period          string
}

func (e *PriceNotFoundError) Error() string {
	return fmt.Sprintf("no price for composition %s in %s at or before %s",
		e.CompositionCode, e.State, e.Period)
}

// UpstreamTimeoutError reports that an external dependency did not answer in
// time, after the transient retry. Terminal for the run.
type UpstreamTimeoutError struct {
	Service string
	Err     error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timed out: %v", e.Service, e.Err)
}

func (e *UpstreamTimeoutError) Unwrap() error { return e.Err }

// IsItemError reports whether err is a per-item failure that should flag a
// line rather than fail the run.
func IsItemError(err error) bool {
	var nm *NoMatchError
	var pn *PriceNotFoundError
	return errors.As(err, &nm) || errors.As(err, &pn)
}
