package budget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/spring"
)

func TestPriceForExactPeriod(t *testing.T) {
	sc := &fakeSpring{prices: map[string]spring.CompositionPrice{
		priceKey("87245", "MA", 9, 2025): {CompositionCode: "87245", CostUnburdened: 41.37},
	}}
	p := NewPricer(sc, 24)

	price, err := p.PriceFor(context.Background(), "87245", "MA", model.RefPeriod{Month: 9, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 41.37, price.UnitPrice)
	assert.Equal(t, model.RefPeriod{Month: 9, Year: 2025}, price.Period)
}

func TestPriceForFallsBackToPriorPeriod(t *testing.T) {
	sc := &fakeSpring{prices: map[string]spring.CompositionPrice{
		priceKey("87245", "MA", 11, 2024): {CompositionCode: "87245", CostUnburdened: 38.10},
	}}
	p := NewPricer(sc, 24)

	price, err := p.PriceFor(context.Background(), "87245", "MA", model.RefPeriod{Month: 2, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 38.10, price.UnitPrice)
	// The period actually used is recorded, not the requested one.
	assert.Equal(t, model.RefPeriod{Month: 11, Year: 2024}, price.Period)
}

func TestPriceForLookbackBound(t *testing.T) {
	sc := &fakeSpring{prices: map[string]spring.CompositionPrice{
		priceKey("87245", "MA", 1, 2023): {CompositionCode: "87245", CostUnburdened: 30},
	}}
	p := NewPricer(sc, 6)

	_, err := p.PriceFor(context.Background(), "87245", "MA", model.RefPeriod{Month: 9, Year: 2025})
	var pn *PriceNotFoundError
	require.ErrorAs(t, err, &pn)
	assert.Equal(t, "87245", pn.CompositionCode)
	assert.Equal(t, "09/2025", pn.Period)
	assert.True(t, IsItemError(err))
}

func TestPriceForPrefersUnburdenedCost(t *testing.T) {
	sc := &fakeSpring{prices: map[string]spring.CompositionPrice{
		priceKey("87245", "SP", 3, 2025): {CompositionCode: "87245", CostUnburdened: 41.37, CostBurdened: 43.90},
	}}
	p := NewPricer(sc, 24)

	price, err := p.PriceFor(context.Background(), "87245", "SP", model.RefPeriod{Month: 3, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 41.37, price.UnitPrice)
}

func TestPriceForBurdenedFallback(t *testing.T) {
	sc := &fakeSpring{prices: map[string]spring.CompositionPrice{
		priceKey("87245", "SP", 3, 2025): {CompositionCode: "87245", CostBurdened: 43.90},
	}}
	p := NewPricer(sc, 24)

	price, err := p.PriceFor(context.Background(), "87245", "SP", model.RefPeriod{Month: 3, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 43.90, price.UnitPrice)
}
