package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecompute_Totals(t *testing.T) {
	b := Budget{
		Stages: []Stage{
			{
				Name: "Foundation",
				Items: []LineItem{
					{Subtotal: 100, Confidence: ConfidenceHigh},
					{Subtotal: 50.5, Confidence: ConfidenceMedium},
				},
			},
			{
				Name: "Finishing",
				Items: []LineItem{
					{Subtotal: 0, Flag: FlagNoMatch, Confidence: ConfidenceLow},
				},
			},
		},
		// Stale values that must be overwritten.
		GrandTotal: 9999,
		Stats:      Stats{TotalItems: 42},
	}

	b.Recompute()

	assert.Equal(t, 150.5, b.GrandTotal)
	assert.Equal(t, 150.5, b.Stages[0].Total)
	assert.Equal(t, 0.0, b.Stages[1].Total)
	assert.Equal(t, 3, b.Stats.TotalItems)
	assert.Equal(t, 2, b.Stats.Priced)
	assert.Equal(t, 1, b.Stats.NoMatch)
	assert.Equal(t, 1, b.Stats.HighConfidence)
	assert.Equal(t, 1, b.Stats.MediumConfidence)
	assert.Equal(t, 1, b.Stats.LowConfidence)
}

func TestRecompute_Empty(t *testing.T) {
	var b Budget
	b.Recompute()
	assert.Equal(t, 0.0, b.GrandTotal)
	assert.Equal(t, 0, b.Stats.TotalItems)
}

func TestStats_SuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.SuccessRate())
	assert.InDelta(t, 50.0, Stats{TotalItems: 4, Priced: 2}.SuccessRate(), 0.001)
	assert.InDelta(t, 100.0, Stats{TotalItems: 3, Priced: 3}.SuccessRate(), 0.001)
}
