package stress

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/benchmark"
	"github.com/pathwise/mri-engine/internal/evidence"
	"github.com/pathwise/mri-engine/internal/provider"
	"github.com/pathwise/mri-engine/internal/repoverify"
	"github.com/pathwise/mri-engine/internal/skills"
	"github.com/pathwise/mri-engine/internal/snapshot"
)

type stubSkills struct {
	required []skills.Requirement
	fresh    provider.Freshness
	err      error
}

func (s *stubSkills) Resolve(_ context.Context, _ string) ([]skills.Requirement, provider.Freshness, error) {
	return s.required, s.fresh, s.err
}

type stubBenchmarks struct {
	snap  *benchmark.Snapshot
	fresh provider.Freshness
	err   error
}

func (s *stubBenchmarks) Resolve(_ context.Context, _, _ string) (*benchmark.Snapshot, provider.Freshness, error) {
	return s.snap, s.fresh, s.err
}

type stubProofs struct {
	records []evidence.Record
	names   []string
}

func (s *stubProofs) ProofsForUser(_ context.Context, _ string) ([]evidence.Record, error) {
	return s.records, nil
}

func (s *stubProofs) VerifiedSkillNames(_ context.Context, _ string) ([]string, error) {
	return s.names, nil
}

type stubVerifier struct {
	result *repoverify.Result
}

func (s *stubVerifier) Verify(_ context.Context, _ string, _ []string) (*repoverify.Result, error) {
	return s.result, nil
}

type stubAnnotator struct {
	proofID string
	rv      evidence.RepoVerification
}

func (s *stubAnnotator) AnnotateRepoVerification(_ context.Context, proofID string, rv evidence.RepoVerification) error {
	s.proofID = proofID
	s.rv = rv
	return nil
}

func requirements(names ...string) []skills.Requirement {
	reqs := make([]skills.Requirement, len(names))
	for i, n := range names {
		reqs[i] = skills.Requirement{Name: n, Importance: 50}
	}
	return reqs
}

func TestRunCompositeScenario(t *testing.T) {
	skillSource := &stubSkills{
		required: requirements("python", "sql", "rest api", "cloud fundamentals"),
		fresh:    provider.Live(),
	}
	benchSource := &stubBenchmarks{
		snap: &benchmark.Snapshot{
			RoleQueryUsed: "backend engineer",
			LocationUsed:  "Roswell, GA",
			QueryMode:     benchmark.ModeExact,
			VacancyIndex:  80,
			TrendLabel:    benchmark.TrendHeatingUp,
			SalaryAverage: 95000,
		},
		fresh: provider.Live(),
	}
	proofs := &stubProofs{
		names: []string{"python", "sql"},
		records: []evidence.Record{
			{ID: "1", Status: evidence.StatusVerified, RepoVerified: true},
			{ID: "2", Status: evidence.StatusVerified},
			{ID: "3", Status: evidence.StatusSubmitted, RepoVerified: true},
			{ID: "4", Status: evidence.StatusSubmitted},
		},
	}

	o := NewOrchestrator(skillSource, benchSource, proofs, snapshot.NewMemoryStore(), zap.NewNop())
	result, err := o.Run(context.Background(), "u1", "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Components.SkillOverlap != 50 {
		t.Errorf("skill overlap: got %v, want 50", result.Components.SkillOverlap)
	}
	if result.Components.EvidenceVerification != 50 {
		t.Errorf("evidence: got %v, want 50", result.Components.EvidenceVerification)
	}
	if result.Components.MarketTrend != 80 {
		t.Errorf("market trend: got %v, want 80", result.Components.MarketTrend)
	}
	if math.Abs(result.Score-59.0) > 1e-9 {
		t.Errorf("composite score: got %v, want 59.0", result.Score)
	}

	if result.RequiredSkillCount != 4 || result.MatchedSkillCount != 2 {
		t.Errorf("counts: got %d/%d, want 2/4", result.MatchedSkillCount, result.RequiredSkillCount)
	}
	if len(result.MissingSkills) != 2 {
		t.Errorf("missing skills: got %v", result.MissingSkills)
	}
	if result.SourceMode != provider.SourceLive {
		t.Errorf("source mode: got %q, want live", result.SourceMode)
	}
	if len(result.Citations) != 2 {
		t.Errorf("citations: got %v", result.Citations)
	}
	if result.Projection == nil {
		t.Error("projection missing")
	}
	if result.Formula == "" || result.FormulaVersion == "" {
		t.Error("formula strings missing")
	}
}

func TestRunServesCompositeSnapshot(t *testing.T) {
	store := snapshot.NewMemoryStore()
	seeded := Result{
		UserID: "u1", Role: "backend engineer", Location: "Roswell, GA",
		Score: 59, SourceMode: provider.SourceLive,
	}
	key := compositeKey("u1", "backend engineer", "Roswell, GA")
	if _, err := store.Put(context.Background(), CompositeSnapshotKind, key, seeded); err != nil {
		t.Fatalf("seeding composite: %v", err)
	}

	o := NewOrchestrator(
		&stubSkills{err: provider.ErrUnavailable},
		&stubBenchmarks{snap: &benchmark.Snapshot{VacancyIndex: 80}, fresh: provider.Live()},
		&stubProofs{}, store, zap.NewNop(),
	)

	result, err := o.Run(context.Background(), "u1", "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SourceMode != provider.SourceSnapshotFallback {
		t.Errorf("source mode: got %q, want snapshot_fallback", result.SourceMode)
	}
	if result.Score != 59 {
		t.Errorf("score from snapshot: got %v, want 59", result.Score)
	}
	if result.SnapshotAge == "" {
		t.Error("snapshot age missing")
	}
}

func TestRunUnavailableWithoutSnapshot(t *testing.T) {
	o := NewOrchestrator(
		&stubSkills{err: provider.ErrUnavailable},
		&stubBenchmarks{err: provider.ErrUnavailable},
		&stubProofs{}, snapshot.NewMemoryStore(), zap.NewNop(),
	)

	_, err := o.Run(context.Background(), "u1", "backend engineer", "Roswell, GA")
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestCheckRepoProofSingleMatchVerifies(t *testing.T) {
	verifier := &stubVerifier{result: &repoverify.Result{
		MatchedSkills: []string{"python"},
		Confidence:    25,
		ReposChecked:  []string{"jdoe/demo"},
	}}
	annotator := &stubAnnotator{}

	o := NewOrchestrator(
		&stubSkills{required: requirements("python", "sql", "rest api", "cloud fundamentals"), fresh: provider.Live()},
		&stubBenchmarks{snap: &benchmark.Snapshot{TrendLabel: benchmark.TrendHeatingUp}, fresh: provider.Live()},
		&stubProofs{}, snapshot.NewMemoryStore(), zap.NewNop(),
		WithRepoVerifier(verifier, annotator),
	)

	result, err := o.CheckRepoProof(context.Background(), "u1", "backend engineer", "Roswell, GA",
		"https://github.com/jdoe/demo", "proof-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Any matched skill marks the proof verified, whatever the confidence.
	if !result.Verified {
		t.Errorf("one matched skill should verify: %+v", result)
	}
	if len(result.MissingSkills) != 3 {
		t.Errorf("missing skills: got %v", result.MissingSkills)
	}
	if result.TrendLabel != benchmark.TrendHeatingUp {
		t.Errorf("trend label: got %q", result.TrendLabel)
	}
	if annotator.proofID != "proof-1" || !annotator.rv.Verified {
		t.Errorf("annotation: got %q %+v", annotator.proofID, annotator.rv)
	}
}

func TestRunClampsScore(t *testing.T) {
	o := NewOrchestrator(
		&stubSkills{required: requirements("python"), fresh: provider.Live()},
		&stubBenchmarks{snap: &benchmark.Snapshot{VacancyIndex: 50000}, fresh: provider.Live()},
		&stubProofs{names: []string{"python"}}, snapshot.NewMemoryStore(), zap.NewNop(),
	)

	result, err := o.Run(context.Background(), "u1", "backend engineer", "Roswell, GA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 100 {
		t.Errorf("score should clamp at 100, got %v", result.Score)
	}
}

func TestProjection(t *testing.T) {
	required := []string{"manual testing", "system design", "python"}
	verified := map[string]bool{"manual testing": true, "python": true}

	p := project(required, verified, 80, 59)

	// values: manual testing 1.0*0.5, system design 0.35*1.7, python 1.0*1.0
	wantSkill := 50 * (0.5 + 0.595 + 1.0) / 3
	if math.Abs(p.SkillComponent-wantSkill) > 1e-9 {
		t.Errorf("skill component: got %v, want %v", p.SkillComponent, wantSkill)
	}
	if p.MarketComponent != 40 {
		t.Errorf("market component: got %v, want 40", p.MarketComponent)
	}
	if len(p.AtRiskSkills) != 1 || p.AtRiskSkills[0] != "manual testing" {
		t.Errorf("at-risk skills: got %v", p.AtRiskSkills)
	}
	if len(p.GrowthSkills) != 1 || p.GrowthSkills[0] != "system design" {
		t.Errorf("growth skills: got %v", p.GrowthSkills)
	}
	if p.RiskLevel != "medium" {
		t.Errorf("risk level: got %q", p.RiskLevel)
	}
}

func TestJobStability(t *testing.T) {
	heated := jobStability2027(80, 95000, benchmark.TrendHeatingUp)
	// 0.7*80 + 0.3*(55+100)/2 = 79.25
	if math.Abs(heated-79.25) > 1e-9 {
		t.Errorf("heating stability: got %v, want 79.25", heated)
	}

	cooled := jobStability2027(30, 0, benchmark.TrendCoolingDown)
	// 0.7*30 + 0.3*(50+20)/2 = 31.5
	if math.Abs(cooled-31.5) > 1e-9 {
		t.Errorf("cooling stability: got %v, want 31.5", cooled)
	}
}
