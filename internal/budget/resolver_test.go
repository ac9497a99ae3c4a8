package budget

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/spring"
)

var testRequest = model.BudgetRequest{
	RawText:      "2 casas padrão mínimo em MA",
	BuildingType: "RESIDENCIAL_CASA",
	Standard:     "MINIMO",
	State:        "MA",
	Quantity:     2,
	Period:       model.RefPeriod{Month: 9, Year: 2025},
}

const generatedStructure = `<reasoning>Steps considered.</reasoning>
<json>
{"stages": [
  {"name": "Fundação", "description": "Base", "items": [
    {"name": "Escavação manual", "description": "Escavação de valas", "unit": "M3", "quantity": 10},
    {"name": "Concreto magro", "unit": "M3", "quantity": 2.5}
  ]},
  {"name": "Alvenaria", "items": [
    {"name": "Alvenaria de vedação", "unit": "M2", "quantity": 120}
  ]}
]}
</json>`

func TestResolveFromBaseBudget(t *testing.T) {
	sc := &fakeSpring{
		base: &spring.BaseBudget{Code: 12, Name: "Base mínimo"},
		stages: []spring.BaseStage{
			{Code: 1, Name: "Fundação", Items: []spring.BaseItem{
				{Code: 10, Name: "Escavação", Quantity: 5, Unit: "M3"},
			}},
			{Code: 2, Name: "Cobertura", Items: []spring.BaseItem{
				{Code: 20, Name: "Telhado cerâmico", Quantity: 60, Unit: "M2"},
			}},
		},
	}
	f := &fakeLLM{responses: []string{"should not be called"}}

	s, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, model.ModeBase, s.Mode)
	assert.Zero(t, f.calls)
	require.Len(t, s.Items, 2)

	// Quantities are scaled by the requested unit count.
	assert.Equal(t, 10.0, s.Items[0].Quantity)
	assert.Equal(t, 120.0, s.Items[1].Quantity)
	assert.Equal(t, "Fundação", s.Items[0].Stage)
	assert.Equal(t, 1, s.Items[0].StageCode)
}

func TestResolveGeneratesWhenNoBase(t *testing.T) {
	sc := &fakeSpring{}
	f := &fakeLLM{responses: []string{generatedStructure}}

	s, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, model.ModeGenerated, s.Mode)
	assert.Equal(t, "Steps considered.", s.Reasoning)
	require.Len(t, s.Items, 3)

	assert.Equal(t, 20.0, s.Items[0].Quantity) // 10 * 2 units
	assert.Equal(t, "Fundação", s.Items[0].Stage)
	// Description falls back to the name when missing.
	assert.Equal(t, "Concreto magro", s.Items[1].Description)
	assert.Equal(t, "Alvenaria", s.Items[2].Stage)
}

func TestResolveGenerationFallbackPrompt(t *testing.T) {
	sc := &fakeSpring{}
	f := &fakeLLM{responses: []string{
		"I am unable to produce JSON right now.",
		`{"stages": [{"name": "Serviços preliminares", "items": [{"name": "Limpeza do terreno", "unit": "M2", "quantity": 300}]}]}`,
	}}

	s, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, model.ModeGenerated, s.Mode)
	assert.Contains(t, s.Warnings[0], "fallback prompt")
}

func TestResolveGenerationFailsAfterRetry(t *testing.T) {
	sc := &fakeSpring{}
	f := &fakeLLM{responses: []string{"nope", "still nope"}}

	_, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	require.Error(t, err)
	var se *StructureResolutionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "MINIMO", se.Standard)
}

func TestResolveRejectsEmptyStructure(t *testing.T) {
	sc := &fakeSpring{}
	f := &fakeLLM{responses: []string{
		`{"stages": []}`,
		`{"stages": [{"name": "Etapa", "items": [{"name": "Item", "unit": "UN", "quantity": 0}]}]}`,
	}}

	_, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive quantity")
}

func TestResolveGeneratesWhenBaseHasNoStages(t *testing.T) {
	sc := &fakeSpring{base: &spring.BaseBudget{Code: 7, Name: "Base vazia"}}
	f := &fakeLLM{responses: []string{generatedStructure}}

	s, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, model.ModeGenerated, s.Mode)
	assert.Equal(t, 1, f.calls)
	require.NotEmpty(t, s.Warnings)
	assert.Contains(t, s.Warnings[0], "unusable")
}

func TestResolveGeneratesWhenBaseHasNoItems(t *testing.T) {
	sc := &fakeSpring{
		base:   &spring.BaseBudget{Code: 7, Name: "Base vazia"},
		stages: []spring.BaseStage{{Code: 1, Name: "Fundação"}},
	}
	f := &fakeLLM{responses: []string{generatedStructure}}

	s, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, model.ModeGenerated, s.Mode)
	require.Len(t, s.Items, 3)
}

func TestResolveBaseStageFetchFailureIsFatal(t *testing.T) {
	sc := &fakeSpring{
		base:      &spring.BaseBudget{Code: 7},
		stagesErr: errors.New("connection reset"),
	}
	f := &fakeLLM{responses: []string{generatedStructure}}

	_, err := NewResolver(sc, f).Resolve(context.Background(), testRequest)
	var se *StructureResolutionError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, f.calls)
}
