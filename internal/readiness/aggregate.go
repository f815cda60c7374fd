package readiness

import "math"

// Readiness bands.
const (
	BandMarketReady = "Market Ready"
	BandCompetitive = "Competitive but risky"
	BandFocusGaps   = "Focus gaps"
)

// unmetCriticalCap is the ceiling applied while any critical checklist item
// lacks verified proof.
const unmetCriticalCap = 85

// Component weights of the final readiness score.
const (
	checklistWeight   = 0.65
	engineeringWeight = 0.20
	alignmentWeight   = 0.15
)

// Result is the aggregated readiness verdict with every component visible.
type Result struct {
	Score                float64  `json:"score"`
	ChecklistScore       float64  `json:"checklist_score"`
	EngineeringScore     float64  `json:"engineering_score"`
	MarketAlignmentScore float64  `json:"market_alignment_score"`
	Band                 string   `json:"band"`
	Capped               bool     `json:"capped"`
	CapReason            string   `json:"cap_reason,omitempty"`
	NextActions          []string `json:"next_actions"`
}

// Aggregate combines the three component scores. An unmet critical
// checklist item caps the final score at 85 no matter how strong the other
// components are.
func Aggregate(checklist ChecklistResult, engineeringScore, alignmentScore float64) Result {
	final := checklistWeight*checklist.Score +
		engineeringWeight*engineeringScore +
		alignmentWeight*alignmentScore
	final = math.Max(0, math.Min(100, final))

	result := Result{
		ChecklistScore:       checklist.Score,
		EngineeringScore:     engineeringScore,
		MarketAlignmentScore: alignmentScore,
		NextActions:          checklist.NextActions,
	}
	if checklist.HasUnmetCritical {
		final = math.Min(final, unmetCriticalCap)
		result.Capped = true
		result.CapReason = "critical checklist items lack verified proof"
	}
	result.Score = final

	switch {
	case final >= 85:
		result.Band = BandMarketReady
	case final >= 65:
		result.Band = BandCompetitive
	default:
		result.Band = BandFocusGaps
	}
	return result
}
