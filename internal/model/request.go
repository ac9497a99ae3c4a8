package model

import (
	"fmt"
	"time"
)

// RefPeriod identifies a SINAPI reference period (month granularity).
type RefPeriod struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// String formats the period as MM/YYYY.
func (p RefPeriod) String() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// IsZero reports whether the period is unset.
func (p RefPeriod) IsZero() bool {
	return p.Month == 0 && p.Year == 0
}

// Before reports whether p precedes other chronologically.
func (p RefPeriod) Before(other RefPeriod) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Prev returns the period one month earlier.
func (p RefPeriod) Prev() RefPeriod {
	if p.Month == 1 {
		return RefPeriod{Month: 12, Year: p.Year - 1}
	}
	return RefPeriod{Month: p.Month - 1, Year: p.Year}
}

// CurrentPeriod returns the reference period for the current month.
func CurrentPeriod(now time.Time) RefPeriod {
	return RefPeriod{Month: int(now.Month()), Year: now.Year()}
}

// BudgetRequest is the validated, structured form of a free-text budget
// request. Immutable once produced by the extractor.
type BudgetRequest struct {
	RawText      string    `json:"raw_text"`
	Scope        string    `json:"scope"`
	BuildingType string    `json:"building_type"`
	Standard     string    `json:"standard"`
	State        string    `json:"state"`
	Quantity     int       `json:"quantity"`
	Period       RefPeriod `json:"period"`
}
