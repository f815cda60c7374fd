package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/adzuna"
	"github.com/pathwise/mri-engine/internal/provider"
	"github.com/pathwise/mri-engine/internal/snapshot"
)

type stubMarket struct {
	histories  map[string][]adzuna.Point
	counts     map[string]float64
	salaries   map[string]adzuna.Histogram
	postings   map[string][]adzuna.Posting
	monthsSeen []int
}

func (s *stubMarket) History(_ context.Context, what, where string, months int) ([]adzuna.Point, error) {
	s.monthsSeen = append(s.monthsSeen, months)
	if points, ok := s.histories[what+"|"+where]; ok {
		return points, nil
	}
	return nil, provider.ErrNoData
}

func (s *stubMarket) SearchCount(_ context.Context, what, where string, maxDaysOld int) (float64, error) {
	if count, ok := s.counts[fmt.Sprintf("%s|%s|%d", what, where, maxDaysOld)]; ok {
		return count, nil
	}
	return 0, provider.ErrNoData
}

func (s *stubMarket) SalaryHistogram(_ context.Context, what, where string) (adzuna.Histogram, error) {
	if hist, ok := s.salaries[what+"|"+where]; ok {
		return hist, nil
	}
	return nil, provider.ErrNoData
}

func (s *stubMarket) Postings(_ context.Context, what, where string, _ int) ([]adzuna.Posting, error) {
	if posts, ok := s.postings[what+"|"+where]; ok {
		return posts, nil
	}
	return nil, provider.ErrNoData
}

func newTestResolver(market *stubMarket) *Resolver {
	return NewResolver(market, snapshot.NewMemoryStore(), zap.NewNop())
}

func growingHistory() []adzuna.Point {
	return []adzuna.Point{{X: 1, Y: 1000}, {X: 2, Y: 1200}, {X: 3, Y: 1500}}
}

func TestResolveExactMatch(t *testing.T) {
	market := &stubMarket{histories: map[string][]adzuna.Point{
		"backend engineer|Roswell, GA": growingHistory(),
	}}

	snap, fresh, err := newTestResolver(market).Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.QueryMode != ModeExact {
		t.Errorf("query mode: got %q, want %q", snap.QueryMode, ModeExact)
	}
	if snap.RoleQueryUsed != "backend engineer" || snap.LocationUsed != "Roswell, GA" {
		t.Errorf("query used: got %q in %q", snap.RoleQueryUsed, snap.LocationUsed)
	}
	if fresh.Mode != provider.SourceLive {
		t.Errorf("freshness mode: got %q, want live", fresh.Mode)
	}
	if len(market.monthsSeen) == 0 || market.monthsSeen[0] != 6 {
		t.Errorf("history window: got %v, want a 6-month query", market.monthsSeen)
	}
}

func TestResolveRoleRewrite(t *testing.T) {
	market := &stubMarket{histories: map[string][]adzuna.Point{
		"backend developer|Roswell, GA": growingHistory(),
	}}

	snap, _, err := newTestResolver(market).Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.QueryMode != ModeRoleRewrite {
		t.Errorf("query mode: got %q, want %q", snap.QueryMode, ModeRoleRewrite)
	}
	if snap.RoleQueryUsed != "backend developer" {
		t.Errorf("role used: got %q, want backend developer", snap.RoleQueryUsed)
	}
}

func TestResolveGeoWiden(t *testing.T) {
	market := &stubMarket{histories: map[string][]adzuna.Point{
		"backend engineer|United States": growingHistory(),
	}}

	snap, _, err := newTestResolver(market).Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.QueryMode != ModeGeoWiden {
		t.Errorf("query mode: got %q, want %q", snap.QueryMode, ModeGeoWiden)
	}
	if snap.LocationUsed != "United States" {
		t.Errorf("location used: got %q, want United States", snap.LocationUsed)
	}
}

func TestResolveSearchProxy(t *testing.T) {
	counts := map[string]float64{}
	for days, count := range map[int]float64{30: 3000, 14: 1700, 7: 980, 3: 510, 1: 180} {
		counts[fmt.Sprintf("backend engineer|Roswell, GA|%d", days)] = count
	}
	market := &stubMarket{counts: counts}

	snap, _, err := newTestResolver(market).Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.QueryMode != ModeProxyFromSearch {
		t.Fatalf("query mode: got %q, want %q", snap.QueryMode, ModeProxyFromSearch)
	}

	// 30-day rate is 100/day, 1-day rate is 180/day.
	if got, want := snap.VacancyIndex, 90.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("vacancy index: got %v, want %v", got, want)
	}
	if got, want := snap.VacancyGrowthPercent, 80.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("growth percent: got %v, want %v", got, want)
	}
	if snap.TrendLabel != TrendHeatingUp {
		t.Errorf("trend: got %q, want %q", snap.TrendLabel, TrendHeatingUp)
	}
}

func TestResolveSearchProxyPrefersBusiestPair(t *testing.T) {
	counts := map[string]float64{
		"backend engineer|Roswell, GA|30": 10,
	}
	for days, count := range map[int]float64{30: 3000, 14: 1700, 7: 980, 3: 510, 1: 180} {
		counts[fmt.Sprintf("backend developer|Roswell, GA|%d", days)] = count
	}
	market := &stubMarket{counts: counts}

	snap, _, err := newTestResolver(market).Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.QueryMode != ModeProxyFromSearch {
		t.Fatalf("query mode: got %q, want %q", snap.QueryMode, ModeProxyFromSearch)
	}
	if snap.RoleQueryUsed != "backend developer" {
		t.Errorf("role used: got %q, want the pair with the highest 30-day count", snap.RoleQueryUsed)
	}
}

func TestResolveSnapshotFallback(t *testing.T) {
	store := snapshot.NewMemoryStore()
	resolver := NewResolver(&stubMarket{}, store, zap.NewNop())

	captured := Snapshot{
		RoleQueryUsed: "backend engineer",
		LocationUsed:  "Roswell, GA",
		QueryMode:     ModeExact,
		VacancyIndex:  72,
		TrendLabel:    TrendHeatingUp,
		CapturedAt:    time.Now().Add(-2 * time.Hour),
	}
	if _, err := store.Put(context.Background(), SnapshotKind, CacheKey("backend engineer", "Roswell, GA"), captured); err != nil {
		t.Fatalf("seeding snapshot: %v", err)
	}

	snap, fresh, err := resolver.Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.Mode != provider.SourceSnapshotFallback {
		t.Errorf("freshness mode: got %q, want snapshot_fallback", fresh.Mode)
	}
	if snap.VacancyIndex != 72 {
		t.Errorf("vacancy index from snapshot: got %v, want 72", snap.VacancyIndex)
	}
}

func TestResolveUnavailable(t *testing.T) {
	_, _, err := newTestResolver(&stubMarket{}).Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestResolveEnrichesSalaryAndCompanies(t *testing.T) {
	market := &stubMarket{
		histories: map[string][]adzuna.Point{
			"backend engineer|Roswell, GA": growingHistory(),
		},
		salaries: map[string]adzuna.Histogram{
			"backend engineer|Roswell, GA": {80000: 10, 100000: 10},
		},
		postings: map[string][]adzuna.Posting{
			"backend engineer|Roswell, GA": {
				{Company: "Initech"}, {Company: "Initech"}, {Company: "Globex"},
			},
		},
	}

	snap, _, err := newTestResolver(market).Resolve(context.Background(), "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := snap.SalaryAverage, 90000.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("salary average: got %v, want %v", got, want)
	}
	if len(snap.TopHiringCompanies) != 2 || snap.TopHiringCompanies[0].Name != "Initech" {
		t.Errorf("top companies: got %+v", snap.TopHiringCompanies)
	}
}

func TestSeriesMetrics(t *testing.T) {
	index, growth, volatility := seriesMetrics([]adzuna.Point{{X: 1, Y: 100}, {X: 2, Y: 100}, {X: 3, Y: 100}})
	if index != 50 {
		t.Errorf("flat series index: got %v, want 50", index)
	}
	if growth != 0 {
		t.Errorf("flat series growth: got %v, want 0", growth)
	}
	if volatility != 0 {
		t.Errorf("flat series volatility: got %v, want 0", volatility)
	}

	index, _, _ = seriesMetrics([]adzuna.Point{{X: 1, Y: 10}, {X: 2, Y: 100}})
	if index != 100 {
		t.Errorf("surging series index should clamp at 100, got %v", index)
	}
}

func TestLadderQueryOrder(t *testing.T) {
	queries := ladderQueries("backend engineer", "Roswell, GA", "United States")

	if queries[0].mode != ModeExact {
		t.Fatalf("first query mode: got %q, want exact", queries[0].mode)
	}
	if queries[1].mode != ModeRoleRewrite || queries[1].role != "backend developer" {
		t.Errorf("second query: got %+v, want backend developer rewrite", queries[1])
	}

	sawWiden := false
	for _, q := range queries {
		if q.mode == ModeGeoWiden && q.where == "United States" {
			sawWiden = true
		}
		if q.mode == ModeGeoWiden && sawWiden && q.role == "software developer" {
			return // rewrites crossed with widened locations come last
		}
	}
	t.Error("ladder never crossed rewrites with widened locations")
}
