package benchmark

import (
	"context"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/metrics"
	"github.com/pathwise/mri-engine/internal/provider"
)

// historyMonths is how far back the vacancy history query reaches.
const historyMonths = 6

// roleRewrites maps a normalized role title to broader market synonyms,
// tried in order.
var roleRewrites = map[string][]string{
	"backend engineer":          {"backend developer", "software developer"},
	"frontend engineer":         {"frontend developer", "web developer"},
	"software engineer":         {"software developer", "developer"},
	"fullstack engineer":        {"full stack developer", "software developer"},
	"full stack engineer":       {"full stack developer", "software developer"},
	"data scientist":            {"data analyst", "machine learning engineer"},
	"data engineer":             {"data analyst", "software developer"},
	"devops engineer":           {"site reliability engineer", "platform engineer"},
	"machine learning engineer": {"data scientist", "ai engineer"},
	"security engineer":         {"cybersecurity analyst", "information security analyst"},
}

func rewritesFor(role string) []string {
	normalized := strings.ToLower(strings.TrimSpace(role))
	if curated, ok := roleRewrites[normalized]; ok {
		return curated
	}
	// Generic fallback keeps obscure "X engineer" titles searchable.
	if strings.HasSuffix(normalized, " engineer") {
		return []string{strings.TrimSuffix(normalized, " engineer") + " developer"}
	}
	return nil
}

// widenLocations relaxes a location in two steps: a "City, Region" input
// drops to the region, and every input finally drops to the nationwide
// label. The original location is never repeated.
func widenLocations(location, nationwide string) []string {
	var widened []string
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(location)): true}

	add := func(loc string) {
		loc = strings.TrimSpace(loc)
		if loc == "" || seen[strings.ToLower(loc)] {
			return
		}
		seen[strings.ToLower(loc)] = true
		widened = append(widened, loc)
	}

	if _, region, ok := strings.Cut(location, ","); ok {
		add(region)
	}
	add(nationwide)
	return widened
}

// query is one (role, location) pair the ladder will try, tagged with the
// stage that generated it.
type query struct {
	mode  QueryMode
	role  string
	where string
}

// ladderQueries builds the ordered live-query plan: exact first, then role
// rewrites, then widened locations, then rewrites crossed with widened
// locations.
func ladderQueries(role, location, nationwide string) []query {
	rewrites := rewritesFor(role)
	widened := widenLocations(location, nationwide)

	queries := []query{{mode: ModeExact, role: role, where: location}}
	for _, r := range rewrites {
		queries = append(queries, query{mode: ModeRoleRewrite, role: r, where: location})
	}
	for _, w := range widened {
		queries = append(queries, query{mode: ModeGeoWiden, role: role, where: w})
	}
	for _, r := range rewrites {
		for _, w := range widened {
			queries = append(queries, query{mode: ModeGeoWiden, role: r, where: w})
		}
	}
	return queries
}

// runLadder walks the live query plan in order and returns the first
// snapshot any stage produces. History-based stages run first; the search
// proxy is the last resort before giving up on live data entirely.
func (r *Resolver) runLadder(ctx context.Context, role, location string) (*Snapshot, error) {
	var errs error

	for _, q := range ladderQueries(role, location, r.nationwide) {
		snap, err := r.fromHistory(ctx, q)
		if err != nil {
			r.logger.Debug("ladder stage failed",
				zap.String("mode", string(q.mode)),
				zap.String("role", q.role),
				zap.String("location", q.where),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
			continue
		}

		r.logger.Info("ladder stage succeeded",
			zap.String("mode", string(q.mode)),
			zap.String("role", q.role),
			zap.String("location", q.where),
		)
		metrics.LadderStageSuccess(string(q.mode))
		return snap, nil
	}

	snap, err := r.fromSearchProxy(ctx, role, location)
	if err != nil {
		errs = multierr.Append(errs, err)
		return nil, errs
	}

	r.logger.Info("ladder stage succeeded",
		zap.String("mode", string(ModeProxyFromSearch)),
		zap.String("role", snap.RoleQueryUsed),
		zap.String("location", snap.LocationUsed),
	)
	metrics.LadderStageSuccess(string(ModeProxyFromSearch))
	return snap, nil
}

// fromHistory builds a snapshot from the monthly vacancy series for one
// query. Fewer than two data points cannot support a trend and count as
// no data.
func (r *Resolver) fromHistory(ctx context.Context, q query) (*Snapshot, error) {
	points, err := r.market.History(ctx, q.role, q.where, historyMonths)
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, provider.ErrNoData
	}

	vacancyIndex, growth, volatility := seriesMetrics(points)
	return &Snapshot{
		RoleQueryUsed:        q.role,
		LocationUsed:         q.where,
		QueryMode:            q.mode,
		VacancyIndex:         vacancyIndex,
		VacancyGrowthPercent: growth,
		VolatilityScore:      volatility,
		TrendLabel:           trendLabel(vacancyIndex),
		VolatilityPoints:     points,
		CapturedAt:           r.now(),
	}, nil
}
