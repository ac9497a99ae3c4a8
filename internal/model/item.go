package model

// WorkItem is a single unit of construction work to be matched against the
// catalog. Produced either from a base budget or by structure generation.
type WorkItem struct {
	Code        int     `json:"code,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Stage       string  `json:"stage"`
	StageCode   int     `json:"stage_code,omitempty"`
}

// SearchText returns the text used to query the catalog for this item.
func (w WorkItem) SearchText() string {
	if w.Description != "" {
		return w.Description
	}
	return w.Name
}

// Confidence classifies how trustworthy a catalog match is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Candidate is a catalog composition returned by similarity search.
type Candidate struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Similarity  float64 `json:"similarity"`
}

// MatchResult is the outcome of matching one work item against the catalog.
type MatchResult struct {
	Best         *Candidate  `json:"best,omitempty"`
	Alternatives []Candidate `json:"alternatives,omitempty"`
	Confidence   Confidence  `json:"confidence"`
	NeedsReview  bool        `json:"needs_review"`
	Message      string      `json:"message,omitempty"`
}

// LineItemFlag marks a per-item partial failure on a priced line.
type LineItemFlag string

const (
	FlagNone    LineItemFlag = ""
	FlagNoMatch LineItemFlag = "no_match"
	FlagNoPrice LineItemFlag = "no_price"
)

// LineItem is a fully processed budget line: a work item, its catalog match
// (if any) and its resolved price. Subtotal is always recomputed from
// UnitPrice and Quantity, never carried from upstream.
type LineItem struct {
	Item         WorkItem     `json:"item"`
	CatalogCode  string       `json:"catalog_code,omitempty"`
	CatalogName  string       `json:"catalog_name,omitempty"`
	Similarity   float64      `json:"similarity,omitempty"`
	Confidence   Confidence   `json:"confidence"`
	Quantity     float64      `json:"quantity"`
	UnitPrice    float64      `json:"unit_price"`
	Subtotal     float64      `json:"subtotal"`
	PricedPeriod *RefPeriod   `json:"priced_period,omitempty"`
	Flag         LineItemFlag `json:"flag,omitempty"`
	Problem      string       `json:"problem,omitempty"`
}
