package budget

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/obradoria/budget-agent/internal/catalog"
	"github.com/obradoria/budget-agent/internal/config"
	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/llm"
	"github.com/obradoria/budget-agent/pkg/spring"
)

// Input is one budget generation request.
type Input struct {
	// Text is the free-text request.
	Text string
	// Provider optionally selects the language model; empty means the
	// configured default.
	Provider string
	// ProjectName, when set, persists the finished budget to the budgeting
	// service under a project with this name.
	ProjectName string
}

// ProviderSource resolves a language model client by name. Satisfied by
// *llm.Registry.
type ProviderSource interface {
	Get(name string) (llm.Client, error)
}

// Orchestrator drives a request through the pipeline stages: extraction,
// structure resolution, catalog matching, pricing, assembly and optional
// persistence. It is the sole emitter of progress events for a run.
type Orchestrator struct {
	registry ProviderSource
	spring   spring.Client
	searcher catalog.Searcher
	cfg      *config.Config
}

// NewOrchestrator wires the pipeline dependencies.
func NewOrchestrator(registry ProviderSource, sc spring.Client, searcher catalog.Searcher, cfg *config.Config) *Orchestrator {
	return &Orchestrator{registry: registry, spring: sc, searcher: searcher, cfg: cfg}
}

// emitter assigns gapless sequence numbers to progress events. Only the run
// goroutine touches it.
type emitter struct {
	ch  chan<- model.ProgressEvent
	seq int
}

func (e *emitter) emit(stage model.EventStage, status model.EventStatus, msg string, progress float64, data any) {
	e.seq++
	if e.ch == nil {
		return
	}
	e.ch <- model.ProgressEvent{
		Seq:      e.seq,
		Stage:    stage,
		Status:   status,
		Message:  msg,
		Progress: progress,
		Data:     data,
	}
}

// Stream runs the pipeline and returns the ordered event feed. The channel
// is closed after the terminal event (completed or failed). The run is not
// aborted by a consumer that stops reading; cancel ctx to abort.
func (o *Orchestrator) Stream(ctx context.Context, in Input) <-chan model.ProgressEvent {
	ch := make(chan model.ProgressEvent, 256)
	go func() {
		defer close(ch)
		em := &emitter{ch: ch}
		b, err := o.run(ctx, in, em)
		if err != nil {
			em.emit(model.StageFailed, model.StatusFailed, err.Error(), 1.0, map[string]string{
				"error_type": errorType(err),
			})
			return
		}
		em.emit(model.StageCompleted, model.StatusCompleted,
			fmt.Sprintf("budget generated in %.1fs", float64(b.ElapsedMilli)/1000), 1.0, b)
	}()
	return ch
}

// Generate runs the pipeline synchronously without an event feed.
func (o *Orchestrator) Generate(ctx context.Context, in Input) (*model.Budget, error) {
	return o.run(ctx, in, &emitter{})
}

func (o *Orchestrator) run(ctx context.Context, in Input, em *emitter) (*model.Budget, error) {
	start := time.Now()

	em.emit(model.StageReceived, model.StatusStarted, "request received", 0.0, nil)

	client, err := o.registry.Get(in.Provider)
	if err != nil {
		return nil, &ValidationError{Field: "provider", Reason: err.Error()}
	}

	// Stage 1: parameter extraction.
	em.emit(model.StageExtracting, model.StatusStarted, "extracting request parameters", 0.05, nil)

	extractor := NewExtractor(client, o.cfg.Period)
	req, warnings, err := extractor.Extract(ctx, in.Text)
	if err != nil {
		em.emit(model.StageExtracting, model.StatusFailed, err.Error(), 0.1, nil)
		return nil, classifyUpstream(err, client.Name())
	}

	em.emit(model.StageExtracting, model.StatusCompleted,
		fmt.Sprintf("%dx %s %s in %s, period %s", req.Quantity, req.BuildingType, req.Standard, req.State, req.Period),
		0.2, req)

	// Stage 2: structure resolution.
	em.emit(model.StageResolving, model.StatusStarted, "resolving work item structure", 0.25, nil)

	resolver := NewResolver(o.spring, client)
	structure, err := resolver.Resolve(ctx, *req)
	if err != nil {
		em.emit(model.StageResolving, model.StatusFailed, err.Error(), 0.3, nil)
		return nil, classifyUpstream(err, "budgeting service")
	}
	warnings = append(warnings, structure.Warnings...)

	em.emit(model.StageResolving, model.StatusCompleted,
		fmt.Sprintf("%d items (%s structure)", len(structure.Items), structure.Mode),
		0.4, map[string]any{"mode": structure.Mode, "items": len(structure.Items)})

	// Stage 3: catalog matching, fanned out with bounded concurrency.
	em.emit(model.StageMatching, model.StatusStarted,
		fmt.Sprintf("matching %d items against the catalog", len(structure.Items)), 0.45, nil)

	matches, err := o.matchAll(ctx, structure.Items)
	if err != nil {
		em.emit(model.StageMatching, model.StatusFailed, err.Error(), 0.5, nil)
		return nil, classifyUpstream(err, "catalog")
	}

	matched := 0
	for _, m := range matches {
		if m.result != nil {
			matched++
		}
	}
	em.emit(model.StageMatching, model.StatusCompleted,
		fmt.Sprintf("%d of %d items matched", matched, len(structure.Items)),
		0.7, map[string]int{"matched": matched, "total": len(structure.Items)})

	// Stage 4: pricing of the unique matched compositions.
	em.emit(model.StagePricing, model.StatusStarted, "resolving composition prices", 0.72, nil)

	prices, err := o.priceAll(ctx, matches, req.State, req.Period)
	if err != nil {
		em.emit(model.StagePricing, model.StatusFailed, err.Error(), 0.75, nil)
		return nil, classifyUpstream(err, "budgeting service")
	}

	em.emit(model.StagePricing, model.StatusCompleted,
		fmt.Sprintf("%d compositions priced", len(prices)), 0.85, nil)

	// Assembly.
	b := o.assemble(*req, structure, matches, prices)
	b.Warnings = append(warnings, b.Warnings...)

	// Stage 5: optional persistence. Failure degrades to a warning.
	if in.ProjectName != "" {
		em.emit(model.StagePersisting, model.StatusStarted, "saving budget", 0.9, nil)
		if err := o.persist(ctx, b, in.ProjectName); err != nil {
			zap.L().Warn("budget persistence failed", zap.Error(err))
			b.Warnings = append(b.Warnings, "persistence failed: "+err.Error())
			em.emit(model.StagePersisting, model.StatusFailed, err.Error(), 0.95, nil)
		} else {
			em.emit(model.StagePersisting, model.StatusCompleted,
				fmt.Sprintf("saved as budget %d", b.BudgetCode), 0.95, nil)
		}
	}

	b.ElapsedMilli = time.Since(start).Milliseconds()

	zap.L().Info("budget generated",
		zap.String("state", req.State),
		zap.String("standard", req.Standard),
		zap.String("mode", string(b.Mode)),
		zap.Float64("grand_total", b.GrandTotal),
		zap.Float64("success_rate", b.Stats.SuccessRate()),
		zap.Int64("elapsed_ms", b.ElapsedMilli),
	)
	return b, nil
}

// matchOutcome pairs a work item with its catalog match or per-item failure.
type matchOutcome struct {
	item    model.WorkItem
	result  *model.MatchResult
	problem string
}

func (o *Orchestrator) matchAll(ctx context.Context, items []model.WorkItem) ([]matchOutcome, error) {
	matcher := NewMatcher(o.searcher, o.cfg.Catalog, o.cfg.Match.TopK)
	outcomes := make([]matchOutcome, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Match.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			res, err := matcher.Match(ctx, item)
			if err != nil {
				if IsItemError(err) {
					outcomes[i] = matchOutcome{item: item, problem: err.Error()}
					return nil
				}
				return err
			}
			outcomes[i] = matchOutcome{item: item, result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// priceAll resolves each unique matched composition once. A missing price is
// a per-item condition and leaves the code out of the returned map.
func (o *Orchestrator) priceAll(ctx context.Context, matches []matchOutcome, state string, period model.RefPeriod) (map[string]Price, error) {
	codes := make(map[string]struct{})
	for _, m := range matches {
		if m.result != nil && m.result.Best != nil {
			codes[m.result.Best.Code] = struct{}{}
		}
	}

	pricer := NewPricer(o.spring, o.cfg.Pricing.MaxLookbackMonths)
	prices := make(map[string]Price, len(codes))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Match.Concurrency)
	for code := range codes {
		g.Go(func() error {
			p, err := pricer.PriceFor(ctx, code, state, period)
			if err != nil {
				if IsItemError(err) {
					return nil
				}
				return err
			}
			mu.Lock()
			prices[code] = *p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

// assemble groups line items by stage, preserving first-seen stage order,
// and recomputes every total from the lines.
func (o *Orchestrator) assemble(req model.BudgetRequest, structure *Structure, matches []matchOutcome, prices map[string]Price) *model.Budget {
	stageIndex := make(map[string]int)
	var stages []model.Stage

	for _, m := range matches {
		li := buildLine(m, prices)

		idx, ok := stageIndex[m.item.Stage]
		if !ok {
			idx = len(stages)
			stageIndex[m.item.Stage] = idx
			stages = append(stages, model.Stage{Code: m.item.StageCode, Name: m.item.Stage})
		}
		stages[idx].Items = append(stages[idx].Items, li)
	}

	b := &model.Budget{
		Request: req,
		Mode:    structure.Mode,
		Stages:  stages,
	}
	b.Recompute()
	return b
}

// buildLine turns one match outcome into a priced line. Unmatched and
// unpriced items become flagged zero-priced lines rather than failing the
// run. Subtotal is always unit price times quantity.
func buildLine(m matchOutcome, prices map[string]Price) model.LineItem {
	li := model.LineItem{
		Item:       m.item,
		Quantity:   m.item.Quantity,
		Confidence: model.ConfidenceLow,
	}

	if m.result == nil || m.result.Best == nil {
		li.Flag = model.FlagNoMatch
		li.Problem = m.problem
		return li
	}

	best := m.result.Best
	li.CatalogCode = best.Code
	li.CatalogName = best.Name
	li.Similarity = best.Similarity
	li.Confidence = m.result.Confidence

	p, ok := prices[best.Code]
	if !ok {
		li.Flag = model.FlagNoPrice
		li.Problem = fmt.Sprintf("no price for composition %s", best.Code)
		return li
	}

	period := p.Period
	li.UnitPrice = p.UnitPrice
	li.Subtotal = p.UnitPrice * li.Quantity
	li.PricedPeriod = &period
	return li
}

// persist saves the budget through the budgeting service: project, budget,
// stages, items.
func (o *Orchestrator) persist(ctx context.Context, b *model.Budget, projectName string) error {
	req := b.Request

	project, err := o.spring.CreateProject(ctx, projectName,
		fmt.Sprintf("Auto-generated project - %s %s", req.BuildingType, req.Standard))
	if err != nil {
		return err
	}
	projectCode := 0
	if project != nil {
		projectCode = project.Code
	}

	budgetName := fmt.Sprintf("Budget %s - %s - %s - %s", req.BuildingType, req.Standard, req.State, req.Period)
	budgetDesc := fmt.Sprintf("Auto-generated budget\nUnits: %d\nSuccess rate: %.1f%%",
		req.Quantity, b.Stats.SuccessRate())

	created, err := o.spring.CreateBudget(ctx, budgetName, budgetDesc, projectCode)
	if err != nil {
		return err
	}

	for _, st := range b.Stages {
		stage, err := o.spring.CreateStage(ctx, created.Code, st.Name,
			fmt.Sprintf("Generated stage - %d items", len(st.Items)))
		if err != nil {
			return err
		}

		payload := make([]spring.StageItemPayload, 0, len(st.Items))
		for _, li := range st.Items {
			item := spring.StageItemPayload{
				Name:        li.Item.Name,
				Description: li.Item.Description,
				Quantity:    li.Quantity,
				UnitCost:    li.UnitPrice,
			}
			if li.CatalogCode != "" {
				if code, convErr := parseCompositionCode(li.CatalogCode); convErr == nil {
					item.CompositionCode = code
				}
			}
			payload = append(payload, item)
		}
		if err := o.spring.AddStageItems(ctx, stage.Code, payload); err != nil {
			return err
		}
	}

	b.BudgetCode = created.Code
	b.ProjectCode = projectCode
	return nil
}

func parseCompositionCode(code string) (int, error) {
	return strconv.Atoi(code)
}

// isTimeoutErr reports whether err is timeout-shaped anywhere in its chain.
func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyUpstream wraps timeout-shaped errors into the upstream timeout
// taxonomy; everything else passes through.
func classifyUpstream(err error, service string) error {
	if isTimeoutErr(err) {
		return &UpstreamTimeoutError{Service: service, Err: err}
	}
	return err
}

// errorType names the taxonomy bucket for the terminal failure event. The
// timeout bucket wins over the stage buckets: a timeout wrapped in a stage
// error is still a timeout.
func errorType(err error) string {
	var ve *ValidationError
	var ee *ExtractionError
	var se *StructureResolutionError
	var ue *UpstreamTimeoutError
	switch {
	case errors.As(err, &ue):
		return "upstream_timeout"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ee):
		return "extraction"
	case errors.As(err, &se):
		return "structure_resolution"
	default:
		return "internal"
	}
}
