package benchmark

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/adzuna"
	"github.com/pathwise/mri-engine/internal/provider"
)

// proxyWindows are the lookback windows, in days, sampled when no monthly
// history exists. Ordered widest first so the series reads oldest to newest.
var proxyWindows = []int{30, 14, 7, 3, 1}

// fromSearchProxy synthesizes a trend from live search counts when the
// provider has no history for any ladder query. Counts over shrinking
// windows are converted to postings-per-day rates and the rate series is
// scored like a history series.
func (r *Resolver) fromSearchProxy(ctx context.Context, role, location string) (*Snapshot, error) {
	q, baseCount, err := r.proxyQuery(ctx, role, location)
	if err != nil {
		return nil, err
	}

	rates := []adzuna.Point{{X: float64(proxyWindows[0]), Y: baseCount / float64(proxyWindows[0])}}
	for _, days := range proxyWindows[1:] {
		count, err := r.market.SearchCount(ctx, q.role, q.where, days)
		if err != nil {
			r.logger.Debug("proxy window failed",
				zap.Int("days", days),
				zap.Error(err),
			)
			continue
		}
		rates = append(rates, adzuna.Point{X: float64(days), Y: count / float64(days)})
	}
	if len(rates) < 2 {
		return nil, provider.ErrNoData
	}

	baseRate := rates[0].Y
	lastRate := rates[len(rates)-1].Y
	if baseRate == 0 {
		return nil, provider.ErrNoData
	}

	vacancyIndex := clampScore(lastRate / baseRate * 50)
	growth := (lastRate - baseRate) / baseRate * 100

	var rateValues []float64
	for _, p := range rates {
		if p.Y != 0 {
			rateValues = append(rateValues, p.Y)
		}
	}
	volatility := clampScore(coefficientOfVariation(rateValues) * 100)

	return &Snapshot{
		RoleQueryUsed:        q.role,
		LocationUsed:         q.where,
		QueryMode:            ModeProxyFromSearch,
		VacancyIndex:         vacancyIndex,
		VacancyGrowthPercent: growth,
		VolatilityScore:      volatility,
		TrendLabel:           trendLabel(vacancyIndex),
		VolatilityPoints:     rates,
		CapturedAt:           r.now(),
	}, nil
}

// proxyQuery picks the ladder query with the highest widest-window search
// count, so the proxy anchors on the busiest (role, location) pair. Ties
// keep ladder order.
func (r *Resolver) proxyQuery(ctx context.Context, role, location string) (query, float64, error) {
	var (
		best      query
		bestCount float64
		errs      error
	)

	for _, q := range ladderQueries(role, location, r.nationwide) {
		count, err := r.market.SearchCount(ctx, q.role, q.where, proxyWindows[0])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if count > bestCount {
			best, bestCount = q, count
		}
	}
	if bestCount > 0 {
		return best, bestCount, nil
	}

	if errs == nil {
		errs = provider.ErrNoData
	}
	return query{}, 0, errs
}
