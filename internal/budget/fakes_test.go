package budget

import (
	"context"
	"strings"

	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/llm"
	"github.com/obradoria/budget-agent/pkg/spring"
)

// fakeLLM returns canned responses in order, cycling on the last one.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.prompts = append(f.prompts, req.Prompt)
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return &llm.Response{Content: f.responses[idx], Provider: "fake"}, nil
}

func (f *fakeLLM) Ping(context.Context) error { return nil }

// fakeSpring is an in-memory budgeting service.
type fakeSpring struct {
	base   *spring.BaseBudget
	stages []spring.BaseStage
	// prices is keyed by "code|uf|mm/yyyy".
	prices map[string]spring.CompositionPrice

	baseErr   error
	stagesErr error
	priceErr  error

	createdBudgets int
	createdStages  int
	addedItems     map[int][]spring.StageItemPayload
}

func priceKey(code, uf string, month, year int) string {
	p := model.RefPeriod{Month: month, Year: year}
	return strings.Join([]string{code, uf, p.String()}, "|")
}

func (f *fakeSpring) FetchBaseBudget(_ context.Context, _ string) (*spring.BaseBudget, error) {
	return f.base, f.baseErr
}

func (f *fakeSpring) FetchStages(_ context.Context, _ int) ([]spring.BaseStage, error) {
	return f.stages, f.stagesErr
}

func (f *fakeSpring) PriceFor(_ context.Context, code, uf string, month, year int) (*spring.CompositionPrice, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	if p, ok := f.prices[priceKey(code, uf, month, year)]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeSpring) CreateProject(_ context.Context, _, _ string) (*spring.CreatedRef, error) {
	return &spring.CreatedRef{Code: 900}, nil
}

func (f *fakeSpring) CreateBudget(_ context.Context, _, _ string, _ int) (*spring.CreatedRef, error) {
	f.createdBudgets++
	return &spring.CreatedRef{Code: 100 + f.createdBudgets}, nil
}

func (f *fakeSpring) CreateStage(_ context.Context, _ int, _, _ string) (*spring.CreatedRef, error) {
	f.createdStages++
	return &spring.CreatedRef{Code: 200 + f.createdStages}, nil
}

func (f *fakeSpring) AddStageItems(_ context.Context, stageCode int, items []spring.StageItemPayload) error {
	if f.addedItems == nil {
		f.addedItems = make(map[int][]spring.StageItemPayload)
	}
	f.addedItems[stageCode] = append(f.addedItems[stageCode], items...)
	return nil
}

func (f *fakeSpring) Ping(context.Context) error { return nil }

// fakeSearcher maps query substrings to canned candidates.
type fakeSearcher struct {
	// byQuery maps a substring of the search text to candidates.
	byQuery map[string][]model.Candidate
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]model.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	for sub, cands := range f.byQuery {
		if strings.Contains(strings.ToLower(query), strings.ToLower(sub)) {
			return cands, nil
		}
	}
	return nil, nil
}

func (f *fakeSearcher) Ping(context.Context) error { return nil }
