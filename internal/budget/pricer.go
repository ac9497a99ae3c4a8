package budget

import (
	"context"

	"go.uber.org/zap"

	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/spring"
)

// Price is a resolved composition price and the reference period it actually
// came from, which may be earlier than requested.
type Price struct {
	UnitPrice float64
	Period    model.RefPeriod
}

// Pricer resolves composition prices for a state and reference period,
// walking back month by month when the requested period has no published
// price yet.
type Pricer struct {
	spring         spring.Client
	lookbackMonths int
}

// NewPricer creates a pricer. lookbackMonths bounds how far back the
// nearest-prior-period fallback may go.
func NewPricer(sc spring.Client, lookbackMonths int) *Pricer {
	if lookbackMonths <= 0 {
		lookbackMonths = 24
	}
	return &Pricer{spring: sc, lookbackMonths: lookbackMonths}
}

// PriceFor resolves the unit price of a composition in state at period.
// When the exact period has no price, earlier periods are tried one month at
// a time up to the lookback bound. A PriceNotFoundError return is per-item:
// the line gets flagged, the run continues.
func (p *Pricer) PriceFor(ctx context.Context, compositionCode, state string, period model.RefPeriod) (*Price, error) {
	current := period
	for i := 0; i <= p.lookbackMonths; i++ {
		cp, err := p.spring.PriceFor(ctx, compositionCode, state, current.Month, current.Year)
		if err != nil {
			return nil, err
		}
		if cp != nil && cp.UnitCost() > 0 {
			if current != period {
				zap.L().Debug("price resolved from earlier period",
					zap.String("composition", compositionCode),
					zap.String("requested", period.String()),
					zap.String("used", current.String()),
				)
			}
			return &Price{UnitPrice: cp.UnitCost(), Period: current}, nil
		}
		current = current.Prev()
	}

	return nil, &PriceNotFoundError{
		CompositionCode: compositionCode,
		State:           state,
		Period:          period.String(),
	}
}
