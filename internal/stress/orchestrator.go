// Package stress computes the market stress composite: how exposed a user's
// target role is, weighed against what they can already prove.
package stress

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/benchmark"
	"github.com/pathwise/mri-engine/internal/evidence"
	"github.com/pathwise/mri-engine/internal/metrics"
	"github.com/pathwise/mri-engine/internal/provider"
	"github.com/pathwise/mri-engine/internal/repoverify"
	"github.com/pathwise/mri-engine/internal/skills"
	"github.com/pathwise/mri-engine/internal/snapshot"
)

const (
	// CompositeSnapshotKind tags persisted composite results.
	CompositeSnapshotKind = "stress:composite"

	compositeTTL    = 24 * time.Hour
	maxMissingShown = 10
	maxMissingProof = 15

	formula        = "0.40*skill_overlap + 0.30*evidence_verification + 0.30*market_trend"
	formulaVersion = "v2"
)

// Composite weights.
const (
	overlapWeight  = 0.40
	evidenceWeight = 0.30
	trendWeight    = 0.30
)

// SkillSource resolves a role to its required skills. *skills.Resolver
// satisfies it.
type SkillSource interface {
	Resolve(ctx context.Context, role string) ([]skills.Requirement, provider.Freshness, error)
}

// BenchmarkSource resolves market benchmarks. *benchmark.Resolver satisfies it.
type BenchmarkSource interface {
	Resolve(ctx context.Context, role, location string) (*benchmark.Snapshot, provider.Freshness, error)
}

// RepoVerifier checks a repository against required skills.
// *repoverify.Verifier satisfies it.
type RepoVerifier interface {
	Verify(ctx context.Context, repoURL string, required []string) (*repoverify.Result, error)
}

// Components are the three weighted inputs of the composite score.
type Components struct {
	SkillOverlap         float64 `json:"skill_overlap"`
	EvidenceVerification float64 `json:"evidence_verification"`
	MarketTrend          float64 `json:"market_trend"`
}

// Weights echoes the composite weights so clients never hardcode them.
type Weights struct {
	SkillOverlap         float64 `json:"skill_overlap"`
	EvidenceVerification float64 `json:"evidence_verification"`
	MarketTrend          float64 `json:"market_trend"`
}

// Citation names a data source that contributed to a result.
type Citation struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Result is the full composite breakdown. Every component is exposed so a
// client can always explain the final number.
type Result struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Location string `json:"location"`

	RequiredSkillCount int      `json:"required_skill_count"`
	MatchedSkillCount  int      `json:"matched_skill_count"`
	MissingSkills      []string `json:"missing_skills"`

	Components Components `json:"components"`
	Weights    Weights    `json:"weights"`
	Score      float64    `json:"score"`

	Benchmark        *benchmark.Snapshot `json:"benchmark"`
	JobStability2027 float64             `json:"job_stability_2027"`
	Projection       *Projection         `json:"projection"`

	Citations      []Citation          `json:"citations"`
	SourceMode     provider.SourceMode `json:"source_mode"`
	SnapshotAge    string              `json:"snapshot_age,omitempty"`
	ComputedAt     time.Time           `json:"computed_at"`
	Formula        string              `json:"formula"`
	FormulaVersion string              `json:"formula_version"`
}

// Orchestrator wires the resolvers, the proof store and the composite
// snapshot fallback together.
type Orchestrator struct {
	skills     SkillSource
	benchmarks BenchmarkSource
	proofs     evidence.Store
	verifier   RepoVerifier
	annotator  evidence.Annotator
	snapshots  snapshot.Store
	logger     *zap.Logger
	now        func() time.Time
}

type OrchestratorOption func(*Orchestrator)

// WithRepoVerifier enables repository proof checking.
func WithRepoVerifier(v RepoVerifier, a evidence.Annotator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.verifier = v
		o.annotator = a
	}
}

func NewOrchestrator(skillSource SkillSource, benchmarks BenchmarkSource, proofs evidence.Store,
	snapshots snapshot.Store, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		skills:     skillSource,
		benchmarks: benchmarks,
		proofs:     proofs,
		snapshots:  snapshots,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func compositeKey(userID, role, location string) string {
	return userID + "|" + benchmark.CacheKey(role, location)
}

// Run computes the composite for one user, role and location. The skills
// and benchmark inputs resolve independently; if either is unavailable
// even through its own snapshot, a stored composite no older than 24 hours
// is served instead.
func (o *Orchestrator) Run(ctx context.Context, userID, role, location string) (*Result, error) {
	required, skillsFresh, skillsErr := o.skills.Resolve(ctx, role)
	bench, benchFresh, benchErr := o.benchmarks.Resolve(ctx, role, location)

	if skillsErr != nil || benchErr != nil {
		return o.fromCompositeSnapshot(ctx, userID, role, location, multierr.Append(skillsErr, benchErr))
	}

	verifiedNames, err := o.proofs.VerifiedSkillNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading verified skills for %q: %w", userID, err)
	}
	proofRecords, err := o.proofs.ProofsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading proofs for %q: %w", userID, err)
	}

	verified := make(map[string]bool, len(verifiedNames))
	for _, name := range verifiedNames {
		verified[skills.Canonical(name)] = true
	}

	requiredNames := skills.Names(required)
	matched := 0
	var missing []string
	for _, name := range requiredNames {
		if verified[skills.Canonical(name)] {
			matched++
		} else if len(missing) < maxMissingShown {
			missing = append(missing, name)
		}
	}

	overlap := 0.0
	if len(requiredNames) > 0 {
		overlap = 100 * float64(matched) / float64(len(requiredNames))
	}
	evidenceScore := evidence.Score(proofRecords)

	score := overlapWeight*overlap +
		evidenceWeight*evidenceScore.Score +
		trendWeight*bench.VacancyIndex
	score = math.Max(0, math.Min(100, score))

	result := &Result{
		UserID:             userID,
		Role:               role,
		Location:           location,
		RequiredSkillCount: len(requiredNames),
		MatchedSkillCount:  matched,
		MissingSkills:      missing,
		Components: Components{
			SkillOverlap:         overlap,
			EvidenceVerification: evidenceScore.Score,
			MarketTrend:          bench.VacancyIndex,
		},
		Weights:          Weights{overlapWeight, evidenceWeight, trendWeight},
		Score:            score,
		Benchmark:        bench,
		JobStability2027: jobStability2027(bench.VacancyIndex, bench.SalaryAverage, bench.TrendLabel),
		Projection:       project(requiredNames, verified, bench.VacancyIndex, score),
		Citations:        o.citations(role, skillsFresh, bench, benchFresh),
		SourceMode:       sourceMode(skillsFresh, benchFresh),
		ComputedAt:       o.now(),
		Formula:          formula,
		FormulaVersion:   formulaVersion,
	}
	if result.SourceMode == provider.SourceSnapshotFallback {
		result.SnapshotAge = olderAge(skillsFresh, benchFresh)
	}

	metrics.StressResult(string(result.SourceMode))
	if _, err := o.snapshots.Put(ctx, CompositeSnapshotKind, compositeKey(userID, role, location), result); err != nil {
		o.logger.Warn("storing composite snapshot failed", zap.Error(err))
	}
	return result, nil
}

func sourceMode(skillsFresh, benchFresh provider.Freshness) provider.SourceMode {
	if skillsFresh.Mode == provider.SourceSnapshotFallback || benchFresh.Mode == provider.SourceSnapshotFallback {
		return provider.SourceSnapshotFallback
	}
	return provider.SourceLive
}

func olderAge(skillsFresh, benchFresh provider.Freshness) string {
	age := skillsFresh.SnapshotAge
	if benchFresh.SnapshotAge > age {
		age = benchFresh.SnapshotAge
	}
	return age.String()
}

func (o *Orchestrator) citations(role string, skillsFresh provider.Freshness, bench *benchmark.Snapshot, benchFresh provider.Freshness) []Citation {
	return []Citation{
		{
			Source: "CareerOneStop",
			Kind:   skills.SnapshotKind,
			Detail: fmt.Sprintf("required skills for %q (%s)", role, skillsFresh.Mode),
		},
		{
			Source: "Adzuna",
			Kind:   benchmark.SnapshotKind,
			Detail: fmt.Sprintf("vacancy benchmark for %q in %q, query mode %s (%s)",
				bench.RoleQueryUsed, bench.LocationUsed, bench.QueryMode, benchFresh.Mode),
		},
	}
}

// fromCompositeSnapshot serves the last stored composite when live inputs
// are gone. The stored result keeps its original components but is
// re-labeled as a snapshot fallback with its current age.
func (o *Orchestrator) fromCompositeSnapshot(ctx context.Context, userID, role, location string, liveErr error) (*Result, error) {
	rec, err := o.snapshots.Get(ctx, CompositeSnapshotKind, compositeKey(userID, role, location), compositeTTL)
	if err != nil {
		return nil, fmt.Errorf("stress composite for %q (%q, %q): %w: %w",
			userID, role, location, provider.ErrUnavailable, multierr.Append(liveErr, err))
	}

	var stored Result
	if err := rec.Decode(&stored); err != nil {
		return nil, fmt.Errorf("stress composite for %q (%q, %q): %w: %w",
			userID, role, location, provider.ErrUnavailable, multierr.Append(liveErr, err))
	}

	o.logger.Warn("serving composite snapshot",
		zap.String("user", userID),
		zap.String("role", role),
		zap.String("location", location),
		zap.Error(liveErr),
	)

	stored.SourceMode = provider.SourceSnapshotFallback
	stored.SnapshotAge = o.now().Sub(rec.CapturedAt).String()
	metrics.StressResult(string(stored.SourceMode))
	return &stored, nil
}

// RepoProofResult reports a repository check for one proof.
type RepoProofResult struct {
	MatchedSkills     []string `json:"matched_skills"`
	MissingSkills     []string `json:"missing_skills"`
	Confidence        float64  `json:"confidence"`
	FilesChecked      []string `json:"files_checked"`
	ReposChecked      []string `json:"repos_checked"`
	LanguagesDetected []string `json:"languages_detected"`
	TrendLabel        string   `json:"trend_label,omitempty"`
	Verified          bool     `json:"verified"`
}

// CheckRepoProof verifies a repository against the role's required skills
// and, when a proof ID is given, annotates the stored proof with the
// outcome. The benchmark trend label is echoed when available but never
// fails the check.
func (o *Orchestrator) CheckRepoProof(ctx context.Context, userID, role, location, repoURL, proofID string) (*RepoProofResult, error) {
	if o.verifier == nil {
		return nil, fmt.Errorf("repository verification is not configured")
	}

	required, _, err := o.skills.Resolve(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("resolving skills for %q: %w", role, err)
	}
	requiredNames := skills.Names(required)

	verification, err := o.verifier.Verify(ctx, repoURL, requiredNames)
	if err != nil {
		return nil, fmt.Errorf("verifying %q: %w", repoURL, err)
	}

	matchedSet := make(map[string]bool, len(verification.MatchedSkills))
	for _, s := range verification.MatchedSkills {
		matchedSet[s] = true
	}
	var missing []string
	for _, name := range requiredNames {
		if !matchedSet[name] && len(missing) < maxMissingProof {
			missing = append(missing, name)
		}
	}

	result := &RepoProofResult{
		MatchedSkills:     verification.MatchedSkills,
		MissingSkills:     missing,
		Confidence:        verification.Confidence,
		FilesChecked:      verification.FilesChecked,
		ReposChecked:      verification.ReposChecked,
		LanguagesDetected: verification.LanguagesDetected,
		Verified:          len(verification.MatchedSkills) > 0,
	}

	if bench, _, err := o.benchmarks.Resolve(ctx, role, location); err == nil {
		result.TrendLabel = bench.TrendLabel
	} else {
		o.logger.Debug("benchmark unavailable during repo check", zap.Error(err))
	}

	if proofID != "" && o.annotator != nil {
		rv := evidence.RepoVerification{
			RepoURL:       repoURL,
			Verified:      result.Verified,
			MatchedSkills: verification.MatchedSkills,
			Confidence:    verification.Confidence,
			FilesChecked:  verification.FilesChecked,
			CheckedAt:     o.now(),
		}
		if err := o.annotator.AnnotateRepoVerification(ctx, proofID, rv); err != nil {
			return nil, fmt.Errorf("annotating proof %q: %w", proofID, err)
		}
	}
	return result, nil
}
