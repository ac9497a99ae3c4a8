package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SAO PAULO", Normalize("São Paulo"))
	assert.Equal(t, "MINIMO", Normalize("  mínimo "))
	assert.Equal(t, "ESPIRITO SANTO", Normalize("Espírito Santo"))
}

func TestResolveState(t *testing.T) {
	tests := []struct {
		in   string
		want string
		conf float64
	}{
		{"SP", "SP", 1.0},
		{"sp", "SP", 1.0},
		{"São Paulo", "SP", 1.0},
		{"maranhão", "MA", 1.0},
		{"Rio Grande do Sul", "RS", 1.0},
		{"grande do sul", "RS", 0.8},
		{"Atlantis", "", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		uf, conf := ResolveState(tt.in)
		assert.Equal(t, tt.want, uf, "input %q", tt.in)
		assert.Equal(t, tt.conf, conf, "input %q", tt.in)
	}
}

func TestResolveStandard(t *testing.T) {
	for _, in := range []string{"mínimo", "minimo", "popular", "simples", "MINIMO"} {
		std, conf := ResolveStandard(in)
		assert.Equal(t, "MINIMO", std, "input %q", in)
		assert.Equal(t, 1.0, conf, "input %q", in)
	}
	for _, in := range []string{"básico", "intermediario", "médio", "padrão"} {
		std, _ := ResolveStandard(in)
		assert.Equal(t, "BASICO", std, "input %q", in)
	}
	std, conf := ResolveStandard("luxuoso")
	assert.Empty(t, std)
	assert.Zero(t, conf)
}

func TestResolveBuildingType(t *testing.T) {
	bt, conf := ResolveBuildingType("casa")
	assert.Equal(t, "RESIDENCIAL_CASA", bt)
	assert.Equal(t, 1.0, conf)

	bt, _ = ResolveBuildingType("sobrado")
	assert.Equal(t, "RESIDENCIAL_SOBRADO", bt)

	bt, _ = ResolveBuildingType("studio")
	assert.Equal(t, "RESIDENCIAL_KITNET", bt)

	bt, _ = ResolveBuildingType("residencial")
	assert.Equal(t, "RESIDENCIAL", bt)

	bt, conf = ResolveBuildingType("fabrica")
	assert.Empty(t, bt)
	assert.Zero(t, conf)
}

func TestResolveMonth(t *testing.T) {
	m, ok := ResolveMonth("3")
	assert.True(t, ok)
	assert.Equal(t, 3, m)

	m, ok = ResolveMonth("março")
	assert.True(t, ok)
	assert.Equal(t, 3, m)

	m, ok = ResolveMonth("DEZ")
	assert.True(t, ok)
	assert.Equal(t, 12, m)

	_, ok = ResolveMonth("13")
	assert.False(t, ok)

	_, ok = ResolveMonth("")
	assert.False(t, ok)
}

func TestNormalizeUnit(t *testing.T) {
	assert.Equal(t, "M2", NormalizeUnit("m²"))
	assert.Equal(t, "M2", NormalizeUnit("metro quadrado"))
	assert.Equal(t, "M3", NormalizeUnit("m3"))
	assert.Equal(t, "UN", NormalizeUnit("unidade"))
	assert.Equal(t, "M", NormalizeUnit("metro linear"))
	assert.Equal(t, "VB", NormalizeUnit("verba"))
	// Unknown units pass through normalized.
	assert.Equal(t, "TON", NormalizeUnit("ton"))
}

func TestUnitsCompatible(t *testing.T) {
	assert.True(t, UnitsCompatible("m²", "M2"))
	assert.True(t, UnitsCompatible("unidade", "UN"))
	assert.True(t, UnitsCompatible("", "M2"))
	assert.True(t, UnitsCompatible("M3", ""))
	assert.False(t, UnitsCompatible("M2", "M3"))
}
