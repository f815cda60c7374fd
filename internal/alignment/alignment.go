// Package alignment measures how well a user's verified skills cover the
// skills the market currently asks for on their pathway.
package alignment

import (
	"context"
	"math"
	"sort"
	"time"
)

// highDemandShare is the fraction of weighted skills treated as high demand.
const highDemandShare = 0.3

// Signal is one aggregated demand observation for a skill, produced by the
// ingestion connectors.
type Signal struct {
	PathwayID   string    `json:"pathway_id"`
	SkillID     string    `json:"skill_id"`
	SkillName   string    `json:"skill_name"`
	RoleFamily  string    `json:"role_family"`
	Frequency   float64   `json:"frequency"`
	SourceCount int       `json:"source_count"`
	WindowEnd   time.Time `json:"window_end"`
}

// SignalStore reads demand signals for a pathway.
type SignalStore interface {
	SignalsForPathway(ctx context.Context, pathwayID string) ([]Signal, error)
}

// DemandSkill is one skill with its normalized demand weight.
type DemandSkill struct {
	SkillID    string  `json:"skill_id"`
	SkillName  string  `json:"skill_name"`
	Weight     float64 `json:"weight"`
	HighDemand bool    `json:"high_demand"`
	Verified   bool    `json:"verified"`
}

type Result struct {
	Score              float64       `json:"score"`
	CoverageRatio      float64       `json:"coverage_ratio"`
	TopDemandSkills    []DemandSkill `json:"top_demand_skills"`
	HighDemandSkillIDs []string      `json:"high_demand_skill_ids"`
}

type Analyzer struct {
	signals SignalStore
}

func NewAnalyzer(signals SignalStore) *Analyzer {
	return &Analyzer{signals: signals}
}

// Align scores verified skill coverage of the pathway's high-demand set.
// The demand weight of a skill is the sum over its signals of
// source_count + frequency*50.
func (a *Analyzer) Align(ctx context.Context, pathwayID string, verifiedSkillIDs []string) (*Result, error) {
	signals, err := a.signals.SignalsForPathway(ctx, pathwayID)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return &Result{TopDemandSkills: []DemandSkill{}, HighDemandSkillIDs: []string{}}, nil
	}

	type weighted struct {
		id     string
		name   string
		weight float64
	}
	byID := make(map[string]*weighted)
	for _, sig := range signals {
		w, ok := byID[sig.SkillID]
		if !ok {
			w = &weighted{id: sig.SkillID, name: sig.SkillName}
			byID[sig.SkillID] = w
		}
		w.weight += float64(sig.SourceCount) + sig.Frequency*50
	}

	ranked := make([]*weighted, 0, len(byID))
	maxWeight := 0.0
	for _, w := range byID {
		ranked = append(ranked, w)
		maxWeight = math.Max(maxWeight, w.weight)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].id < ranked[j].id
	})

	highCount := int(math.Ceil(float64(len(ranked)) * highDemandShare))
	if highCount < 1 {
		highCount = 1
	}

	verified := make(map[string]bool, len(verifiedSkillIDs))
	for _, id := range verifiedSkillIDs {
		verified[id] = true
	}

	result := &Result{
		TopDemandSkills:    make([]DemandSkill, 0, len(ranked)),
		HighDemandSkillIDs: make([]string, 0, highCount),
	}
	covered := 0
	for i, w := range ranked {
		normalized := 0.0
		if maxWeight > 0 {
			normalized = w.weight / maxWeight
		}
		skill := DemandSkill{
			SkillID:    w.id,
			SkillName:  w.name,
			Weight:     normalized,
			HighDemand: i < highCount,
			Verified:   verified[w.id],
		}
		result.TopDemandSkills = append(result.TopDemandSkills, skill)
		if skill.HighDemand {
			result.HighDemandSkillIDs = append(result.HighDemandSkillIDs, w.id)
			if skill.Verified {
				covered++
			}
		}
	}

	result.CoverageRatio = float64(covered) / float64(highCount)
	result.Score = math.Max(0, math.Min(100, result.CoverageRatio*100))
	return result, nil
}
