package benchmark

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/adzuna"
	"github.com/pathwise/mri-engine/internal/provider"
	"github.com/pathwise/mri-engine/internal/snapshot"
)

const (
	// SnapshotKind tags persisted benchmarks in the snapshot store.
	SnapshotKind = "adzuna:benchmark"

	snapshotTTL       = 24 * time.Hour
	defaultNationwide = "United States"

	companiesSampleSize = 50
	topCompanies        = 5
)

// MarketData is the slice of the vacancy provider the resolver needs.
// *adzuna.Client satisfies it.
type MarketData interface {
	History(ctx context.Context, what, where string, months int) ([]adzuna.Point, error)
	SearchCount(ctx context.Context, what, where string, maxDaysOld int) (float64, error)
	SalaryHistogram(ctx context.Context, what, where string) (adzuna.Histogram, error)
	Postings(ctx context.Context, what, where string, limit int) ([]adzuna.Posting, error)
}

// Resolver answers benchmark lookups, falling back to stored snapshots when
// every live ladder stage fails.
type Resolver struct {
	market     MarketData
	snapshots  snapshot.Store
	logger     *zap.Logger
	nationwide string
	now        func() time.Time
}

func NewResolver(market MarketData, snapshots snapshot.Store, logger *zap.Logger) *Resolver {
	return &Resolver{
		market:     market,
		snapshots:  snapshots,
		logger:     logger,
		nationwide: defaultNationwide,
		now:        time.Now,
	}
}

// CacheKey is the snapshot key for a (role, location) pair.
func CacheKey(role, location string) string {
	return strings.ToLower(strings.TrimSpace(role)) + "|" + strings.ToLower(strings.TrimSpace(location))
}

// Resolve runs the live ladder for role and location. When no live stage
// succeeds, a snapshot no older than 24 hours is served with
// snapshot_fallback freshness. Both paths failing yields ErrUnavailable.
func (r *Resolver) Resolve(ctx context.Context, role, location string) (*Snapshot, provider.Freshness, error) {
	key := CacheKey(role, location)

	snap, liveErr := r.runLadder(ctx, role, location)
	if liveErr == nil {
		r.enrich(ctx, snap)
		if _, err := r.snapshots.Put(ctx, SnapshotKind, key, snap); err != nil {
			r.logger.Warn("storing benchmark snapshot failed", zap.Error(err))
		}
		return snap, provider.Live(), nil
	}

	r.logger.Warn("all live benchmark stages failed, trying snapshot",
		zap.String("role", role),
		zap.String("location", location),
		zap.Error(liveErr),
	)

	rec, snapErr := r.snapshots.Get(ctx, SnapshotKind, key, snapshotTTL)
	if snapErr != nil {
		return nil, provider.Freshness{}, fmt.Errorf("benchmark for %q in %q: %w: %w",
			role, location, provider.ErrUnavailable, multierr.Append(liveErr, snapErr))
	}

	var stored Snapshot
	if err := rec.Decode(&stored); err != nil {
		return nil, provider.Freshness{}, fmt.Errorf("benchmark for %q in %q: %w: %w",
			role, location, provider.ErrUnavailable, multierr.Append(liveErr, err))
	}
	return &stored, provider.FromSnapshot(rec.CapturedAt, r.now()), nil
}

// enrich adds salary and hiring-company context using the query that won
// the ladder. Both fetches are best effort and never fail the benchmark.
func (r *Resolver) enrich(ctx context.Context, snap *Snapshot) {
	hist, err := r.market.SalaryHistogram(ctx, snap.RoleQueryUsed, snap.LocationUsed)
	if err != nil {
		r.logger.Debug("salary histogram unavailable", zap.Error(err))
	} else if len(hist) > 0 {
		snap.SalaryAverage = hist.WeightedAverage()
		snap.SalaryPercentileLocal = hist.PercentileBelow(snap.SalaryAverage)
	}

	postings, err := r.market.Postings(ctx, snap.RoleQueryUsed, snap.LocationUsed, companiesSampleSize)
	if err != nil {
		r.logger.Debug("company postings unavailable", zap.Error(err))
		return
	}
	snap.TopHiringCompanies = topHiring(postings, topCompanies)
}

func topHiring(postings []adzuna.Posting, limit int) []Company {
	counts := make(map[string]int)
	for _, p := range postings {
		name := strings.TrimSpace(p.Company)
		if name == "" {
			continue
		}
		counts[name]++
	}

	companies := make([]Company, 0, len(counts))
	for name, n := range counts {
		companies = append(companies, Company{Name: name, OpenRoles: n})
	}
	sort.Slice(companies, func(i, j int) bool {
		if companies[i].OpenRoles != companies[j].OpenRoles {
			return companies[i].OpenRoles > companies[j].OpenRoles
		}
		return companies[i].Name < companies[j].Name
	})

	if len(companies) > limit {
		companies = companies[:limit]
	}
	return companies
}
