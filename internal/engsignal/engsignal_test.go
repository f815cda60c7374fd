package engsignal

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/github"
	"github.com/pathwise/mri-engine/internal/provider"
)

type stubHost struct {
	profile *github.Profile
	repos   []github.Repo
	repoErr error

	readmes    map[string]bool
	readmeErr  error
	repoCalls  int
	readmeCall int
}

func (s *stubHost) Profile(_ context.Context, _ string) (*github.Profile, error) {
	if s.profile == nil {
		return nil, provider.ErrNoData
	}
	return s.profile, nil
}

func (s *stubHost) Repos(_ context.Context, _ string, _ int) ([]github.Repo, error) {
	s.repoCalls++
	return s.repos, s.repoErr
}

func (s *stubHost) HasReadme(_ context.Context, _, repo string) (bool, error) {
	s.readmeCall++
	if s.readmeErr != nil {
		return false, s.readmeErr
	}
	return s.readmes[repo], nil
}

func TestAnalyzeScoresActivity(t *testing.T) {
	now := time.Now()
	host := &stubHost{
		repos: []github.Repo{
			{Name: "one", Language: "Go", Stars: 150, UpdatedAt: now.Add(-24 * time.Hour)},
			{Name: "two", Language: "Python", Stars: 50, UpdatedAt: now.Add(-200 * 24 * time.Hour)},
		},
		readmes: map[string]bool{"one": true, "two": false},
	}

	result := NewAnalyzer(host, zap.NewNop()).Analyze(context.Background(), "jdoe")

	m := result.Metrics
	if m.RepoCount != 2 || m.RecentRepoCount != 1 || m.StarTotal != 200 || m.LanguageCount != 2 {
		t.Fatalf("metrics: got %+v", m)
	}
	if m.ReadmeRatio != 0.5 {
		t.Errorf("readme ratio: got %v, want 0.5", m.ReadmeRatio)
	}

	// 25*(2/30) + 25*(1/20) + 20*1 + 15*(2/10) + 15*0.5
	want := 25*2.0/30 + 25*1.0/20 + 20 + 15*2.0/10 + 15*0.5
	if math.Abs(result.Score-want) > 1e-9 {
		t.Errorf("score: got %v, want %v", result.Score, want)
	}
}

func TestAnalyzeUsesProfileRepoCount(t *testing.T) {
	host := &stubHost{
		profile: &github.Profile{Login: "jdoe", PublicRepos: 150},
		repos: []github.Repo{
			{Name: "one", Language: "Go"},
			{Name: "two", Language: "Go"},
		},
	}

	result := NewAnalyzer(host, zap.NewNop()).Analyze(context.Background(), "jdoe")
	if result.Metrics.RepoCount != 150 {
		t.Errorf("repo count: got %d, want the profile's 150", result.Metrics.RepoCount)
	}
}

func TestAnalyzeEmptyIdentity(t *testing.T) {
	host := &stubHost{}
	result := NewAnalyzer(host, zap.NewNop()).Analyze(context.Background(), "  ")

	if result.Score != 0 {
		t.Errorf("empty identity score: got %v, want 0", result.Score)
	}
	if host.repoCalls != 0 {
		t.Error("empty identity should not hit the provider")
	}
}

func TestAnalyzeProviderFailureCachesZero(t *testing.T) {
	host := &stubHost{repoErr: provider.ErrUnavailable}
	analyzer := NewAnalyzer(host, zap.NewNop())

	first := analyzer.Analyze(context.Background(), "jdoe")
	if first.Score != 0 || first.Metrics.RepoCount != 0 {
		t.Fatalf("failure should produce zero result: %+v", first)
	}

	analyzer.Analyze(context.Background(), "JDoe")
	if host.repoCalls != 1 {
		t.Errorf("zero result not cached: %d provider calls", host.repoCalls)
	}
}

func TestReadmeSamplingStopsOnRateLimit(t *testing.T) {
	repos := make([]github.Repo, 5)
	for i := range repos {
		repos[i].Name = string(rune('a' + i))
	}
	host := &stubHost{repos: repos, readmeErr: provider.ErrRateLimited}

	NewAnalyzer(host, zap.NewNop()).Analyze(context.Background(), "jdoe")
	if host.readmeCall != 1 {
		t.Errorf("sampling should stop on first rate limit, made %d calls", host.readmeCall)
	}
}
