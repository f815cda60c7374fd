package stress

import (
	"math"
	"strings"

	"github.com/pathwise/mri-engine/internal/benchmark"
	"github.com/pathwise/mri-engine/internal/skills"
)

const maxProjectionSkills = 8

// Automation-resilience buckets. A required skill whose normalized name
// contains one of these tokens gets the bucket's multiplier; everything
// else stays at 1.0.
var (
	lowResilienceTokens = []string{
		"manual testing", "basic html", "basic css", "vanilla coding",
		"documentation", "log monitoring", "frontend fundamentals",
	}
	highResilienceTokens = []string{
		"system design", "architecture", "rag", "prompt engineering",
		"cybersecurity", "threat hunting", "ethical ai", "compliance",
		"cloud", "distributed systems",
	}
)

const (
	lowResilienceMultiplier  = 0.5
	highResilienceMultiplier = 1.7

	unverifiedValue = 0.35
)

// Projection estimates how the score shifts as automation reweighs skills.
type Projection struct {
	ProjectedScore  float64  `json:"projected_score"`
	Delta           float64  `json:"delta"`
	RiskLevel       string   `json:"risk_level"`
	SkillComponent  float64  `json:"skill_component"`
	MarketComponent float64  `json:"market_component"`
	AtRiskSkills    []string `json:"at_risk_skills"`
	GrowthSkills    []string `json:"growth_skills"`
}

func resilienceMultiplier(skill string) float64 {
	name := skills.Normalize(skill)
	for _, token := range lowResilienceTokens {
		if strings.Contains(name, token) {
			return lowResilienceMultiplier
		}
	}
	for _, token := range highResilienceTokens {
		if strings.Contains(name, token) {
			return highResilienceMultiplier
		}
	}
	return 1.0
}

// project reweighs each required skill by its automation resilience and
// whether the user has verified it, then folds in half of the vacancy
// index as the market component.
func project(required []string, verified map[string]bool, vacancyIndex, currentScore float64) *Projection {
	p := &Projection{
		AtRiskSkills: []string{},
		GrowthSkills: []string{},
	}

	var sum float64
	for _, skill := range required {
		mult := resilienceMultiplier(skill)
		value := unverifiedValue
		if verified[skills.Canonical(skill)] {
			value = 1.0
		}
		sum += value * mult

		if mult == lowResilienceMultiplier && verified[skills.Canonical(skill)] &&
			len(p.AtRiskSkills) < maxProjectionSkills {
			p.AtRiskSkills = append(p.AtRiskSkills, skill)
		}
		if mult == highResilienceMultiplier && len(p.GrowthSkills) < maxProjectionSkills {
			p.GrowthSkills = append(p.GrowthSkills, skill)
		}
	}

	if len(required) > 0 {
		p.SkillComponent = 50 * sum / float64(len(required))
	}
	p.MarketComponent = 0.5 * vacancyIndex
	p.ProjectedScore = math.Max(0, math.Min(100, p.SkillComponent+p.MarketComponent))
	p.Delta = p.ProjectedScore - currentScore

	switch {
	case p.ProjectedScore < 60:
		p.RiskLevel = "high"
	case p.ProjectedScore < 78:
		p.RiskLevel = "medium"
	default:
		p.RiskLevel = "low"
	}
	return p
}

// jobStability2027 blends the vacancy trend with salary momentum into a
// forward-looking stability estimate.
func jobStability2027(vacancyIndex, salaryAverage float64, trendLabel string) float64 {
	salaryMomentum := 50.0
	if salaryAverage > 0 {
		if salaryAverage >= 60000 {
			salaryMomentum = 55
		} else {
			salaryMomentum = 45
		}
	}

	var slope float64
	switch trendLabel {
	case benchmark.TrendHeatingUp:
		slope = 100
	case benchmark.TrendCoolingDown:
		slope = 20
	default:
		slope = 55
	}

	stability := 0.7*vacancyIndex + 0.3*(salaryMomentum+slope)/2
	return math.Max(0, math.Min(100, stability))
}
