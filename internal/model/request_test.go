package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefPeriod_String(t *testing.T) {
	assert.Equal(t, "01/2025", RefPeriod{Month: 1, Year: 2025}.String())
	assert.Equal(t, "12/2024", RefPeriod{Month: 12, Year: 2024}.String())
}

func TestRefPeriod_Before(t *testing.T) {
	jan := RefPeriod{Month: 1, Year: 2025}
	dec := RefPeriod{Month: 12, Year: 2024}
	assert.True(t, dec.Before(jan))
	assert.False(t, jan.Before(dec))
	assert.False(t, jan.Before(jan))
}

func TestRefPeriod_Prev(t *testing.T) {
	assert.Equal(t, RefPeriod{Month: 12, Year: 2024}, RefPeriod{Month: 1, Year: 2025}.Prev())
	assert.Equal(t, RefPeriod{Month: 6, Year: 2025}, RefPeriod{Month: 7, Year: 2025}.Prev())
}

func TestCurrentPeriod(t *testing.T) {
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, RefPeriod{Month: 3, Year: 2025}, CurrentPeriod(now))
}

func TestWorkItem_SearchText(t *testing.T) {
	assert.Equal(t, "concrete slab", WorkItem{Name: "slab", Description: "concrete slab"}.SearchText())
	assert.Equal(t, "slab", WorkItem{Name: "slab"}.SearchText())
}
