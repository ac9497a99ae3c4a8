package model

// GenerationMode records where the work-item structure came from.
type GenerationMode string

const (
	ModeBase      GenerationMode = "base"
	ModeGenerated GenerationMode = "generated"
)

// Stage groups priced line items under one construction phase.
type Stage struct {
	Code  int        `json:"code,omitempty"`
	Name  string     `json:"name"`
	Items []LineItem `json:"items"`
	Total float64    `json:"total"`
}

// Stats summarizes per-item outcomes of one generation run.
type Stats struct {
	TotalItems       int `json:"total_items"`
	Priced           int `json:"priced"`
	NoMatch          int `json:"no_match"`
	NoPrice          int `json:"no_price"`
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
}

// SuccessRate returns the fraction of items fully priced, in percent.
func (s Stats) SuccessRate() float64 {
	if s.TotalItems == 0 {
		return 0
	}
	return float64(s.Priced) / float64(s.TotalItems) * 100
}

// Budget is the final artifact of one generation run.
type Budget struct {
	Request      BudgetRequest  `json:"request"`
	Mode         GenerationMode `json:"mode"`
	Stages       []Stage        `json:"stages"`
	GrandTotal   float64        `json:"grand_total"`
	Stats        Stats          `json:"stats"`
	Warnings     []string       `json:"warnings,omitempty"`
	BudgetCode   int            `json:"budget_code,omitempty"`
	ProjectCode  int            `json:"project_code,omitempty"`
	ElapsedMilli int64          `json:"elapsed_ms"`
}

// Recompute rebuilds stage totals, the grand total and the stats block from
// the current line items. The grand total is never cached independently.
func (b *Budget) Recompute() {
	b.GrandTotal = 0
	b.Stats = Stats{}
	for i := range b.Stages {
		st := &b.Stages[i]
		st.Total = 0
		for _, li := range st.Items {
			st.Total += li.Subtotal
			b.Stats.TotalItems++
			switch li.Flag {
			case FlagNoMatch:
				b.Stats.NoMatch++
			case FlagNoPrice:
				b.Stats.NoPrice++
			default:
				b.Stats.Priced++
			}
			switch li.Confidence {
			case ConfidenceHigh:
				b.Stats.HighConfidence++
			case ConfidenceMedium:
				b.Stats.MediumConfidence++
			default:
				b.Stats.LowConfidence++
			}
		}
		b.GrandTotal += st.Total
	}
}
