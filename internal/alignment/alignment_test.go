package alignment

import (
	"context"
	"encoding/json"
	"math"
	"testing"
)

type stubSignals struct {
	signals []Signal
}

func (s *stubSignals) SignalsForPathway(_ context.Context, _ string) ([]Signal, error) {
	return s.signals, nil
}

func TestAlignNoSignals(t *testing.T) {
	result, err := NewAnalyzer(&stubSignals{}).Align(context.Background(), "p1", []string{"s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 0 || result.CoverageRatio != 0 {
		t.Errorf("no signals should score zero: %+v", result)
	}
	if result.TopDemandSkills == nil || result.HighDemandSkillIDs == nil {
		t.Error("slices should be empty, not nil")
	}
}

func TestAlignCoverage(t *testing.T) {
	store := &stubSignals{signals: []Signal{
		{SkillID: "python", SkillName: "Python", Frequency: 0.8, SourceCount: 3},
		{SkillID: "sql", SkillName: "SQL", Frequency: 0.5, SourceCount: 2},
		{SkillID: "docker", SkillName: "Docker", Frequency: 0.2, SourceCount: 1},
		{SkillID: "git", SkillName: "Git", Frequency: 0.1, SourceCount: 1},
	}}

	result, err := NewAnalyzer(store).Align(context.Background(), "p1", []string{"python", "docker"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ceil(4 * 0.3) = 2 high-demand skills: python (43) and sql (27).
	if len(result.HighDemandSkillIDs) != 2 {
		t.Fatalf("high demand set: got %v", result.HighDemandSkillIDs)
	}
	if result.HighDemandSkillIDs[0] != "python" || result.HighDemandSkillIDs[1] != "sql" {
		t.Errorf("high demand order: got %v", result.HighDemandSkillIDs)
	}

	if want := 0.5; result.CoverageRatio != want {
		t.Errorf("coverage: got %v, want %v", result.CoverageRatio, want)
	}
	if want := 50.0; result.Score != want {
		t.Errorf("score: got %v, want %v", result.Score, want)
	}

	if w := result.TopDemandSkills[0].Weight; math.Abs(w-1) > 1e-9 {
		t.Errorf("top skill should normalize to 1, got %v", w)
	}
}

func TestAlignZeroWeightSignals(t *testing.T) {
	store := &stubSignals{signals: []Signal{
		{SkillID: "python", SkillName: "Python"},
		{SkillID: "sql", SkillName: "SQL"},
	}}

	result, err := NewAnalyzer(store).Align(context.Background(), "p1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, skill := range result.TopDemandSkills {
		if math.IsNaN(skill.Weight) || skill.Weight != 0 {
			t.Errorf("skill %q weight: got %v, want 0", skill.SkillID, skill.Weight)
		}
	}
	if _, err := json.Marshal(result); err != nil {
		t.Errorf("result does not marshal: %v", err)
	}
}

func TestAlignAggregatesDuplicateSkills(t *testing.T) {
	store := &stubSignals{signals: []Signal{
		{SkillID: "sql", SkillName: "SQL", Frequency: 0.1, SourceCount: 1},
		{SkillID: "sql", SkillName: "SQL", Frequency: 0.1, SourceCount: 1},
		{SkillID: "python", SkillName: "Python", Frequency: 0.2, SourceCount: 1},
	}}

	result, err := NewAnalyzer(store).Align(context.Background(), "p1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// sql: 2*(1 + 5) = 12, python: 1 + 10 = 11, so sql leads.
	if result.TopDemandSkills[0].SkillID != "sql" {
		t.Errorf("expected aggregated sql on top: %+v", result.TopDemandSkills)
	}
	if len(result.HighDemandSkillIDs) != 1 {
		t.Errorf("ceil(2*0.3) = 1 high-demand skill, got %v", result.HighDemandSkillIDs)
	}
}
