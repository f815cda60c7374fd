// Package engsignal scores public engineering activity for a code-hosting
// identity. The score is a coarse signal, so any provider trouble collapses
// to a zero result instead of an error.
package engsignal

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/cache"
	"github.com/pathwise/mri-engine/internal/github"
	"github.com/pathwise/mri-engine/internal/provider"
)

const (
	cacheTTL     = 15 * time.Minute
	cacheEntries = 1000

	repoFetchLimit  = 100
	recentWindow    = 90 * 24 * time.Hour
	readmeSampleMax = 10

	// Saturation points for each score component.
	repoSaturation   = 30
	recentSaturation = 20
	starSaturation   = 200
	langSaturation   = 10
)

// Metrics are the raw activity numbers behind a score.
type Metrics struct {
	RepoCount       int     `json:"repo_count"`
	RecentRepoCount int     `json:"recent_repo_count"`
	StarTotal       int     `json:"star_total"`
	LanguageCount   int     `json:"language_count"`
	ReadmeRatio     float64 `json:"readme_ratio"`
}

type Result struct {
	Score   float64 `json:"score"`
	Metrics Metrics `json:"metrics"`
}

// CodeHost is the slice of the hosting client the analyzer needs.
// *github.Client satisfies it.
type CodeHost interface {
	Profile(ctx context.Context, user string) (*github.Profile, error)
	Repos(ctx context.Context, owner string, limit int) ([]github.Repo, error)
	HasReadme(ctx context.Context, owner, repo string) (bool, error)
}

type Analyzer struct {
	host    CodeHost
	logger  *zap.Logger
	results *cache.Cache[string, Result]
	now     func() time.Time
}

func NewAnalyzer(host CodeHost, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		host:    host,
		logger:  logger,
		results: cache.New[string, Result](cacheTTL, cacheEntries),
		now:     time.Now,
	}
}

// Analyze scores the identity's public activity. Results are cached for 15
// minutes per lowercased identity. An empty identity or any provider
// failure yields a cached zero result, never an error, so readiness
// aggregation keeps working without a GitHub account.
func (a *Analyzer) Analyze(ctx context.Context, identity string) Result {
	key := strings.ToLower(strings.TrimSpace(identity))
	if cached, ok := a.results.Get(key); ok {
		return cached
	}

	result := a.analyze(ctx, key)
	a.results.Set(key, result)
	return result
}

func (a *Analyzer) analyze(ctx context.Context, identity string) Result {
	if identity == "" {
		return Result{}
	}

	repos, err := a.host.Repos(ctx, identity, repoFetchLimit)
	if err != nil {
		a.logger.Warn("engineering signal unavailable",
			zap.String("identity", identity),
			zap.Error(err),
		)
		return Result{}
	}

	m := Metrics{RepoCount: len(repos)}
	// The profile's public repo count covers repos beyond the fetched page.
	if profile, err := a.host.Profile(ctx, identity); err == nil && profile.PublicRepos > m.RepoCount {
		m.RepoCount = profile.PublicRepos
	}
	cutoff := a.now().Add(-recentWindow)
	languages := make(map[string]bool)
	for _, r := range repos {
		if r.UpdatedAt.After(cutoff) {
			m.RecentRepoCount++
		}
		m.StarTotal += r.Stars
		if lang := strings.ToLower(r.Language); lang != "" {
			languages[lang] = true
		}
	}
	m.LanguageCount = len(languages)
	m.ReadmeRatio = a.readmeRatio(ctx, identity, repos)

	return Result{Score: score(m), Metrics: m}
}

// readmeRatio samples up to ten repositories for a readme. A rate-limit
// response stops the sampling so one analysis cannot burn the whole quota.
func (a *Analyzer) readmeRatio(ctx context.Context, identity string, repos []github.Repo) float64 {
	sample := repos
	if len(sample) > readmeSampleMax {
		sample = sample[:readmeSampleMax]
	}
	if len(sample) == 0 {
		return 0
	}

	checked, withReadme := 0, 0
	for _, r := range sample {
		has, err := a.host.HasReadme(ctx, identity, r.Name)
		if errors.Is(err, provider.ErrRateLimited) {
			a.logger.Debug("readme sampling rate limited", zap.String("identity", identity))
			break
		}
		if err != nil {
			continue
		}
		checked++
		if has {
			withReadme++
		}
	}
	if checked == 0 {
		return 0
	}
	return float64(withReadme) / float64(checked)
}

func score(m Metrics) float64 {
	s := 25 * math.Min(float64(m.RepoCount), repoSaturation) / repoSaturation
	s += 25 * math.Min(float64(m.RecentRepoCount), recentSaturation) / recentSaturation
	s += 20 * math.Min(math.Log1p(float64(m.StarTotal))/math.Log1p(starSaturation), 1)
	s += 15 * math.Min(float64(m.LanguageCount), langSaturation) / langSaturation
	s += 15 * m.ReadmeRatio
	return math.Max(0, math.Min(100, s))
}
