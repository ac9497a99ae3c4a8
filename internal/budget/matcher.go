package budget

import (
	"context"
	"fmt"

	"github.com/obradoria/budget-agent/internal/catalog"
	"github.com/obradoria/budget-agent/internal/config"
	"github.com/obradoria/budget-agent/internal/model"
)

// Matcher resolves work items against the composition catalog and classifies
// matches into confidence tiers:
//   - high (>= Thresholds.High): accepted outright
//   - medium (>= Thresholds.Medium): accepted, flagged for review
//   - below medium: rejected as NoMatchError
type Matcher struct {
	searcher   catalog.Searcher
	thresholds config.Thresholds
	topK       int
}

// NewMatcher creates a matcher over the given catalog searcher.
func NewMatcher(searcher catalog.Searcher, thresholds config.Thresholds, topK int) *Matcher {
	if topK <= 0 {
		topK = 5
	}
	return &Matcher{searcher: searcher, thresholds: thresholds, topK: topK}
}

// Match searches the catalog for item and classifies the best candidate.
// A NoMatchError return means the item should become a flagged zero-priced
// line, not that the run fails.
func (m *Matcher) Match(ctx context.Context, item model.WorkItem) (*model.MatchResult, error) {
	candidates, err := m.searcher.Search(ctx, item.SearchText(), m.topK)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return nil, &NoMatchError{ItemName: item.Name}
	}

	// Candidates come back sorted by similarity; take the first whose
	// measurement unit is compatible with the item's.
	pick := -1
	for i, c := range candidates {
		if UnitsCompatible(item.Unit, c.Unit) {
			pick = i
			break
		}
	}
	if pick < 0 {
		return nil, &NoMatchError{ItemName: item.Name, Best: candidates[0].Similarity}
	}

	best := candidates[pick]
	alternatives := make([]model.Candidate, 0, len(candidates)-1)
	alternatives = append(alternatives, candidates[:pick]...)
	alternatives = append(alternatives, candidates[pick+1:]...)

	switch {
	case best.Similarity >= m.thresholds.High:
		return &model.MatchResult{
			Best:         &best,
			Alternatives: alternatives,
			Confidence:   model.ConfidenceHigh,
			NeedsReview:  false,
			Message:      fmt.Sprintf("match with %.0f%% similarity", best.Similarity*100),
		}, nil

	case best.Similarity >= m.thresholds.Medium:
		return &model.MatchResult{
			Best:         &best,
			Alternatives: alternatives,
			Confidence:   model.ConfidenceMedium,
			NeedsReview:  true,
			Message:      fmt.Sprintf("match with %.0f%% similarity, review recommended", best.Similarity*100),
		}, nil

	default:
		return nil, &NoMatchError{ItemName: item.Name, Best: best.Similarity}
	}
}
