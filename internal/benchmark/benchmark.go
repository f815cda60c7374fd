// Package benchmark resolves a (role, location) pair to labor-market
// vacancy and salary benchmarks. Live queries run through an ordered
// degradation ladder of increasingly relaxed provider queries; when every
// live stage fails, a recent snapshot is served instead.
package benchmark

import (
	"math"
	"time"

	"github.com/pathwise/mri-engine/internal/adzuna"
)

// QueryMode records which ladder stage produced a benchmark.
type QueryMode string

const (
	ModeExact           QueryMode = "exact"
	ModeRoleRewrite     QueryMode = "role_rewrite"
	ModeGeoWiden        QueryMode = "geo_widen"
	ModeProxyFromSearch QueryMode = "proxy_from_search"
)

// Trend labels derived from the vacancy index.
const (
	TrendHeatingUp   = "heating_up"
	TrendNeutral     = "neutral"
	TrendCoolingDown = "cooling_down"
)

// Index thresholds for the trend labels. The proxy path shares them with the
// history path so trend_label does not depend on query mode.
const (
	heatingUpThreshold   = 60.0
	coolingDownThreshold = 40.0
)

// Company is one entry of the top-hiring-companies list.
type Company struct {
	Name      string `json:"name"`
	OpenRoles int    `json:"open_roles"`
}

// Snapshot is a resolved market benchmark. It records which query actually
// succeeded so callers can explain degraded results.
type Snapshot struct {
	RoleQueryUsed         string         `json:"role_query_used"`
	LocationUsed          string         `json:"location_used"`
	QueryMode             QueryMode      `json:"query_mode"`
	VacancyIndex          float64        `json:"vacancy_index"`
	VacancyGrowthPercent  float64        `json:"vacancy_growth_percent"`
	VolatilityScore       float64        `json:"volatility_score"`
	TrendLabel            string         `json:"trend_label"`
	SalaryAverage         float64        `json:"salary_average"`
	SalaryPercentileLocal float64        `json:"salary_percentile_local"`
	TopHiringCompanies    []Company      `json:"top_hiring_companies"`
	VolatilityPoints      []adzuna.Point `json:"volatility_points"`
	CapturedAt            time.Time      `json:"captured_at"`
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func trendLabel(vacancyIndex float64) string {
	switch {
	case vacancyIndex >= heatingUpThreshold:
		return TrendHeatingUp
	case vacancyIndex <= coolingDownThreshold:
		return TrendCoolingDown
	default:
		return TrendNeutral
	}
}

// seriesMetrics derives the benchmark scores from a vacancy-count series.
// The first point is floored at 1 to keep the ratio finite; volatility is
// the coefficient of variation over nonzero points, scaled to [0,100].
func seriesMetrics(points []adzuna.Point) (vacancyIndex, growthPercent, volatility float64) {
	if len(points) < 2 {
		return 0, 0, 0
	}

	first := math.Max(points[0].Y, 1)
	last := points[len(points)-1].Y

	vacancyIndex = clampScore(last / first * 50)
	growthPercent = (last - first) / first * 100

	var nonzero []float64
	for _, p := range points {
		if p.Y != 0 {
			nonzero = append(nonzero, p.Y)
		}
	}
	volatility = clampScore(coefficientOfVariation(nonzero) * 100)
	return vacancyIndex, growthPercent, volatility
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance) / mean
}
