package budget

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/obradoria/budget-agent/internal/config"
	"github.com/obradoria/budget-agent/internal/model"
)

// RawParams is the unvalidated parameter set produced by the language model
// from the request text. All fields are free text as the model wrote them.
type RawParams struct {
	Scope        string `json:"scope"`
	BuildingType string `json:"building_type"`
	Standard     string `json:"standard"`
	State        string `json:"state"`
	Quantity     string `json:"quantity"`
	Month        string `json:"month"`
	Year         string `json:"year"`
}

// ValidateParams normalizes raw extracted parameters into a BudgetRequest.
// State and standard are required; quantity defaults to 1 and the reference
// period defaults to the current month. Defaults applied are reported as
// warnings on the returned slice.
func ValidateParams(raw RawParams, rawText string, period config.PeriodConfig, now time.Time) (*model.BudgetRequest, []string, error) {
	var warnings []string

	state, _ := ResolveState(raw.State)
	if state == "" {
		return nil, nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("unrecognized state %q", raw.State)}
	}

	standard, _ := ResolveStandard(raw.Standard)
	if standard == "" {
		return nil, nil, &ValidationError{Field: "standard", Reason: fmt.Sprintf("unrecognized construction standard %q", raw.Standard)}
	}

	buildingType, _ := ResolveBuildingType(raw.BuildingType)
	if buildingType == "" {
		buildingType = "RESIDENCIAL"
		if strings.TrimSpace(raw.BuildingType) != "" {
			warnings = append(warnings, fmt.Sprintf("unrecognized building type %q, assuming residential", raw.BuildingType))
		}
	}

	quantity := 1
	if q := strings.TrimSpace(raw.Quantity); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return nil, nil, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("not a number: %q", raw.Quantity)}
		}
		if n <= 0 {
			return nil, nil, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
		}
		quantity = n
	}

	p, warn, err := validatePeriod(raw.Month, raw.Year, period, now)
	if err != nil {
		return nil, nil, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}

	return &model.BudgetRequest{
		RawText:      rawText,
		Scope:        strings.TrimSpace(raw.Scope),
		BuildingType: buildingType,
		Standard:     standard,
		State:        state,
		Quantity:     quantity,
		Period:       p,
	}, warnings, nil
}

// validatePeriod resolves month and year, filling missing parts from now.
// Two-digit years are read as 20XX. Years outside the configured bounds are
// rejected.
func validatePeriod(rawMonth, rawYear string, bounds config.PeriodConfig, now time.Time) (model.RefPeriod, string, error) {
	current := model.CurrentPeriod(now)
	p := model.RefPeriod{}
	defaulted := false

	if m, ok := ResolveMonth(rawMonth); ok {
		p.Month = m
	} else {
		if strings.TrimSpace(rawMonth) != "" {
			return model.RefPeriod{}, "", &ValidationError{Field: "month", Reason: fmt.Sprintf("unrecognized month %q", rawMonth)}
		}
		p.Month = current.Month
		defaulted = true
	}

	if y := strings.TrimSpace(rawYear); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			return model.RefPeriod{}, "", &ValidationError{Field: "year", Reason: fmt.Sprintf("not a number: %q", rawYear)}
		}
		if n < 100 {
			n += 2000
		}
		if n < bounds.EarliestYear || n > bounds.LatestYear {
			return model.RefPeriod{}, "", &ValidationError{
				Field:  "year",
				Reason: fmt.Sprintf("%d outside accepted range %d-%d", n, bounds.EarliestYear, bounds.LatestYear),
			}
		}
		p.Year = n
	} else {
		p.Year = current.Year
		defaulted = true
	}

	var warn string
	if defaulted {
		warn = fmt.Sprintf("reference period not fully specified, using %s", p)
	}
	return p, warn, nil
}
