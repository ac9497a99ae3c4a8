package budget

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/obradoria/budget-agent/internal/config"
	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/llm"
)

// Extractor turns free-text budget requests into validated parameters via
// the language model, with one corrective retry when the first answer cannot
// be parsed or fails validation.
type Extractor struct {
	client llm.Client
	period config.PeriodConfig
	now    func() time.Time
}

// NewExtractor creates an extractor using the given provider.
func NewExtractor(client llm.Client, period config.PeriodConfig) *Extractor {
	return &Extractor{client: client, period: period, now: time.Now}
}

// extractionPayload matches the JSON the model is asked to produce. Numeric
// fields arrive as numbers or strings depending on the model; json.Number
// absorbs both.
type extractionPayload struct {
	Quantity       json.Number `json:"quantity"`
	BuildingType   string      `json:"building_type"`
	Standard       string      `json:"standard"`
	State          string      `json:"state"`
	ReferenceMonth json.Number `json:"reference_month"`
	ReferenceYear  json.Number `json:"reference_year"`
	Scope          string      `json:"scope"`
}

func (p extractionPayload) toRaw() RawParams {
	return RawParams{
		Scope:        p.Scope,
		BuildingType: p.BuildingType,
		Standard:     p.Standard,
		State:        p.State,
		Quantity:     p.Quantity.String(),
		Month:        p.ReferenceMonth.String(),
		Year:         p.ReferenceYear.String(),
	}
}

// Extract runs the extraction stage. The first attempt uses the standard
// prompt; if it fails (unparseable answer or validation error), one
// corrective attempt repeats the prompt with the problems appended. Warnings
// from validation (applied defaults, approximations) ride along with the
// result.
func (e *Extractor) Extract(ctx context.Context, text string) (*model.BudgetRequest, []string, error) {
	now := e.now()

	req, warnings, problems, callErr := e.attempt(ctx, text, ExtractionPrompt(text, now))
	if req != nil {
		return req, warnings, nil
	}
	// A timed-out or cancelled model call is not correctable by a better
	// prompt; surface it with the chain intact so it classifies as an
	// upstream timeout, not a bad answer.
	if isTimeoutErr(callErr) || ctx.Err() != nil {
		err := callErr
		if err == nil {
			err = ctx.Err()
		}
		return nil, nil, &ExtractionError{Provider: e.client.Name(), Err: err}
	}

	zap.L().Info("extraction retry",
		zap.String("provider", e.client.Name()),
		zap.Strings("problems", problems),
	)

	req, warnings, problems, callErr = e.attempt(ctx, text, CorrectiveExtractionPrompt(text, now, problems))
	if req != nil {
		return req, warnings, nil
	}
	if callErr != nil {
		return nil, nil, &ExtractionError{
			Provider: e.client.Name(),
			Err:      eris.Wrap(callErr, "after retry"),
		}
	}

	return nil, nil, &ExtractionError{
		Provider: e.client.Name(),
		Err:      eris.Errorf("after retry: %v", problems),
	}
}

// attempt runs one extraction round. On failure it returns the problems to
// feed into the corrective prompt, plus the model call error when the round
// failed at the transport rather than on the answer.
func (e *Extractor) attempt(ctx context.Context, text, prompt string) (*model.BudgetRequest, []string, []string, error) {
	resp, err := e.client.Complete(ctx, llm.Request{
		System:      extractionSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, nil, []string{"model call failed: " + err.Error()}, err
	}

	var payload extractionPayload
	if !RecoverObject(resp.Content, &payload) {
		return nil, nil, []string{"answer did not contain a parseable JSON object"}, nil
	}

	req, warnings, err := ValidateParams(payload.toRaw(), text, e.period, e.now())
	if err != nil {
		return nil, nil, []string{err.Error()}, nil
	}
	return req, warnings, nil, nil
}
