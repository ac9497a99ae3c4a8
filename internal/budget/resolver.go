package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/llm"
	"github.com/obradoria/budget-agent/pkg/spring"
)

// Structure is the resolved work item set for a request, before catalog
// matching. Mode records whether it came from a base budget or was generated.
type Structure struct {
	Mode      model.GenerationMode
	Items     []model.WorkItem
	Reasoning string
	Warnings  []string
}

// Resolver produces the work item structure for a request: a stored base
// budget when one exists for the standard, otherwise a generated structure
// from the language model.
type Resolver struct {
	spring spring.Client
	client llm.Client
}

// NewResolver creates a structure resolver.
func NewResolver(sc spring.Client, client llm.Client) *Resolver {
	return &Resolver{spring: sc, client: client}
}

// Resolve returns the work item structure for req. Item quantities are
// already scaled by the requested unit count.
func (r *Resolver) Resolve(ctx context.Context, req model.BudgetRequest) (*Structure, error) {
	base, err := r.spring.FetchBaseBudget(ctx, req.Standard)
	if err != nil {
		return nil, &StructureResolutionError{Standard: req.Standard, Err: err}
	}

	var warnings []string
	if base != nil {
		s, err := r.fromBase(ctx, req, base)
		if err == nil {
			return s, nil
		}
		// A transport failure is fatal; a base budget that came back empty
		// is treated like absence and falls through to generation.
		if !isEmptyBaseErr(err) {
			return nil, &StructureResolutionError{Standard: req.Standard, Err: err}
		}
		zap.L().Warn("base budget unusable, generating structure",
			zap.String("standard", req.Standard),
			zap.Error(err),
		)
		warnings = append(warnings, fmt.Sprintf("base budget for %s is unusable (%v), structure generated instead", req.Standard, err))
	} else {
		zap.L().Info("no base budget, generating structure",
			zap.String("standard", req.Standard),
			zap.String("provider", r.client.Name()),
		)
	}

	s, err := r.generate(ctx, req)
	if err != nil {
		return nil, &StructureResolutionError{Standard: req.Standard, Err: err}
	}
	s.Warnings = append(warnings, s.Warnings...)
	return s, nil
}

// emptyBaseError marks a base budget that exists but has no usable content.
// Callers treat it like absence rather than failing the run.
type emptyBaseError struct {
	msg string
}

func (e *emptyBaseError) Error() string { return e.msg }

func isEmptyBaseErr(err error) bool {
	var eb *emptyBaseError
	return errors.As(err, &eb)
}

func (r *Resolver) fromBase(ctx context.Context, req model.BudgetRequest, base *spring.BaseBudget) (*Structure, error) {
	stages, err := r.spring.FetchStages(ctx, base.Code)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, &emptyBaseError{msg: fmt.Sprintf("base budget %d has no stages", base.Code)}
	}

	var items []model.WorkItem
	for _, st := range stages {
		for _, it := range st.Items {
			items = append(items, model.WorkItem{
				Code:        it.Code,
				Name:        it.Name,
				Description: it.Description,
				Quantity:    it.Quantity * float64(req.Quantity),
				Unit:        NormalizeUnit(it.Unit),
				Stage:       st.Name,
				StageCode:   st.Code,
			})
		}
	}
	if len(items) == 0 {
		return nil, &emptyBaseError{msg: fmt.Sprintf("base budget %d has no items", base.Code)}
	}

	return &Structure{Mode: model.ModeBase, Items: items}, nil
}

// structurePayload matches the JSON the generation prompt asks for.
type structurePayload struct {
	Stages []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Items       []struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Unit        string  `json:"unit"`
			Quantity    float64 `json:"quantity"`
		} `json:"items"`
	} `json:"stages"`
}

// generate asks the model for a structure with the chain-of-thought prompt,
// falling back once to the simple prompt when the answer cannot be parsed or
// fails validation.
func (r *Resolver) generate(ctx context.Context, req model.BudgetRequest) (*Structure, error) {
	s, problem := r.generateOnce(ctx, req, StructurePrompt(req))
	if s != nil {
		return s, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	zap.L().Info("structure generation retry", zap.String("problem", problem))

	s, problem = r.generateOnce(ctx, req, SimpleStructurePrompt(req))
	if s != nil {
		s.Warnings = append(s.Warnings, "structure generated with fallback prompt")
		return s, nil
	}
	return nil, eris.Errorf("generation failed after retry: %s", problem)
}

func (r *Resolver) generateOnce(ctx context.Context, req model.BudgetRequest, prompt string) (*Structure, string) {
	resp, err := r.client.Complete(ctx, llm.Request{
		System:      structureSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, "model call failed: " + err.Error()
	}

	var payload structurePayload
	if !RecoverStructure(resp.Content, &payload) {
		return nil, "answer did not contain a parseable structure"
	}
	if problem := validateStructure(payload); problem != "" {
		return nil, problem
	}

	var items []model.WorkItem
	for _, st := range payload.Stages {
		for _, it := range st.Items {
			desc := it.Description
			if desc == "" {
				desc = it.Name
			}
			unit := NormalizeUnit(it.Unit)
			if unit == "" {
				unit = "UN"
			}
			items = append(items, model.WorkItem{
				Name:        it.Name,
				Description: desc,
				Quantity:    it.Quantity * float64(req.Quantity),
				Unit:        unit,
				Stage:       st.Name,
			})
		}
	}

	return &Structure{
		Mode:      model.ModeGenerated,
		Items:     items,
		Reasoning: ReasoningBlock(resp.Content),
	}, ""
}

// validateStructure checks the generated payload for the shape the pipeline
// needs. Returns an empty string when valid.
func validateStructure(p structurePayload) string {
	if len(p.Stages) == 0 {
		return "stage list is empty"
	}
	for i, st := range p.Stages {
		if strings.TrimSpace(st.Name) == "" {
			return fmt.Sprintf("stage %d has no name", i+1)
		}
		if len(st.Items) == 0 {
			return fmt.Sprintf("stage %q has no items", st.Name)
		}
		for j, it := range st.Items {
			if strings.TrimSpace(it.Name) == "" {
				return fmt.Sprintf("item %d of stage %q has no name", j+1, st.Name)
			}
			if it.Quantity <= 0 {
				return fmt.Sprintf("item %q of stage %q has a non-positive quantity", it.Name, st.Name)
			}
		}
	}
	return ""
}
