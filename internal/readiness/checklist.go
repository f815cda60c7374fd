// Package readiness turns checklist completion, engineering activity and
// market alignment into a single market-readiness verdict.
package readiness

import (
	"fmt"
	"math"
	"time"

	"github.com/pathwise/mri-engine/internal/evidence"
)

// Checklist item tiers.
const (
	TierNonNegotiable = "non_negotiable"
	TierStrongSignal  = "strong_signal"
)

const (
	recencyBonusMax  = 0.1
	recencyDecayDays = 180
	deploymentBonus  = 0.1
	maxNextActions   = 5
)

// ChecklistItem is one requirement on a readiness checklist.
type ChecklistItem struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Tier       string `json:"tier"`
	IsCritical bool   `json:"is_critical"`
}

// ChecklistResult is the checklist portion of the readiness score.
type ChecklistResult struct {
	Score            float64  `json:"score"`
	HasUnmetCritical bool     `json:"has_unmet_critical"`
	Gaps             []string `json:"gaps"`
	NextActions      []string `json:"next_actions"`
}

// ChecklistScore grades checklist completion from verified proofs. Tier
// completion carries most of the weight; staying active recently and
// having something deployed each add a small bonus.
func ChecklistScore(items []ChecklistItem, proofs []evidence.Record, now time.Time) ChecklistResult {
	completed := make(map[string]bool)
	var newestVerified time.Time
	hasDeployment := false
	for _, p := range proofs {
		if p.Status != evidence.StatusVerified {
			continue
		}
		completed[p.ChecklistItemID] = true
		if p.CreatedAt.After(newestVerified) {
			newestVerified = p.CreatedAt
		}
		if p.ProofType == evidence.ProofDeployedURL {
			hasDeployment = true
		}
	}

	var result ChecklistResult
	nnTotal, nnDone, ssTotal, ssDone := 0, 0, 0, 0
	for _, item := range items {
		done := completed[item.ID]
		switch item.Tier {
		case TierNonNegotiable:
			nnTotal++
			if done {
				nnDone++
			}
		case TierStrongSignal:
			ssTotal++
			if done {
				ssDone++
			}
		}
		if !done {
			result.Gaps = append(result.Gaps, item.Title)
			if item.IsCritical {
				result.HasUnmetCritical = true
			}
			if len(result.NextActions) < maxNextActions {
				result.NextActions = append(result.NextActions,
					fmt.Sprintf("Submit verifiable proof for %q", item.Title))
			}
		}
	}

	score := 0.6*ratio(nnDone, nnTotal) + 0.3*ratio(ssDone, ssTotal)
	if !newestVerified.IsZero() {
		ageDays := now.Sub(newestVerified).Hours() / 24
		score += recencyBonusMax * math.Max(0, 1-ageDays/recencyDecayDays)
	}
	if hasDeployment {
		score += deploymentBonus
	}

	result.Score = math.Max(0, math.Min(100, score*100))
	return result
}

func ratio(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}
