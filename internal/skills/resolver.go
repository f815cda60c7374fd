package skills

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/careeronestop"
	"github.com/pathwise/mri-engine/internal/provider"
	"github.com/pathwise/mri-engine/internal/snapshot"
)

const (
	// SnapshotKind is the snapshot source kind for resolved skill lists.
	SnapshotKind = "careeronestop:skills"

	// Skill standards move slowly; a week-old list is still usable.
	snapshotTTL = 7 * 24 * time.Hour

	maxRequirements = 40

	// Importance assigned to skills recovered from the alias-table fallback,
	// which has no provider importance to rank by.
	aliasFallbackImportance = 10
)

// Requirement is one canonical required skill for a role.
type Requirement struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	SourceRole string  `json:"source_role"`
}

// Names returns the canonical names of the requirements, in rank order.
func Names(requirements []Requirement) []string {
	names := make([]string, 0, len(requirements))
	for _, req := range requirements {
		names = append(names, req.Name)
	}
	return names
}

// Resolver turns a target role into a ranked, deduplicated list of canonical
// required skills, with a snapshot fallback when the provider is down.
type Resolver struct {
	provider  *careeronestop.Client
	snapshots snapshot.Store
	logger    *zap.Logger
}

func NewResolver(provider *careeronestop.Client, snapshots snapshot.Store, logger *zap.Logger) *Resolver {
	return &Resolver{
		provider:  provider,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Resolve returns the required skills for role. A live success is persisted
// to the snapshot store; a live failure falls back to the latest valid
// snapshot and surfaces as snapshot_fallback freshness. When both fail the
// error wraps provider.ErrUnavailable.
func (r *Resolver) Resolve(ctx context.Context, role string) ([]Requirement, provider.Freshness, error) {
	key := Normalize(role)
	if key == "" {
		key = "software developer"
	}

	requirements, liveErr := r.resolveLive(ctx, role)
	if liveErr == nil {
		if _, err := r.snapshots.Put(ctx, SnapshotKind, key, requirements); err != nil {
			r.logger.Warn("storing skills snapshot failed", zap.String("role", key), zap.Error(err))
		}
		return requirements, provider.Live(), nil
	}

	r.logger.Warn("live skill resolution failed, trying snapshot",
		zap.String("role", key),
		zap.Error(liveErr),
	)

	rec, snapErr := r.snapshots.Get(ctx, SnapshotKind, key, snapshotTTL)
	if snapErr != nil {
		return nil, provider.Freshness{}, fmt.Errorf(
			"resolving skills for %q: %w: %w", key, provider.ErrUnavailable, multierr.Append(liveErr, snapErr),
		)
	}

	var cached []Requirement
	if err := rec.Decode(&cached); err != nil {
		return nil, provider.Freshness{}, fmt.Errorf(
			"resolving skills for %q: %w: %w", key, provider.ErrUnavailable, multierr.Append(liveErr, err),
		)
	}

	r.logger.Info("serving skills from snapshot",
		zap.String("role", key),
		zap.Time("captured_at", rec.CapturedAt),
	)
	return cached, provider.FromSnapshot(rec.CapturedAt, time.Now()), nil
}

func (r *Resolver) resolveLive(ctx context.Context, role string) ([]Requirement, error) {
	occupations, err := r.provider.SearchOccupations(ctx, strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}

	best := bestOccupation(role, occupations)
	if best.Code == "" {
		return nil, fmt.Errorf("occupation %q has no usable code: %w", best.Title, provider.ErrNoData)
	}

	ranked, err := r.provider.OccupationSkills(ctx, best.Code)
	if err != nil {
		return nil, err
	}

	requirements := rankRequirements(ranked, best.Title)
	if len(requirements) == 0 {
		requirements = aliasFallback(occupations, best.Title)
	}
	if len(requirements) == 0 {
		return nil, fmt.Errorf("no required skills for role %q: %w", role, provider.ErrNoData)
	}
	return requirements, nil
}

// bestOccupation scores each occupation as 2x canonical-token overlap with
// the role plus 1 when the title starts with the role's lead token.
func bestOccupation(role string, occupations []careeronestop.Occupation) careeronestop.Occupation {
	normalizedRole := Normalize(role)
	roleTokens := canonicalTokenSet(normalizedRole)
	leadToken := ""
	if fields := strings.Fields(normalizedRole); len(fields) > 0 {
		leadToken = fields[0]
	}

	best := occupations[0]
	bestScore := -1.0
	for _, occ := range occupations {
		title := Normalize(occ.Title)
		if title == "" {
			continue
		}

		overlap := 0
		for token := range canonicalTokenSet(title) {
			if _, ok := roleTokens[token]; ok {
				overlap++
			}
		}

		score := float64(overlap) * 2
		if leadToken != "" && strings.HasPrefix(title, leadToken) {
			score++
		}
		if score > bestScore {
			bestScore = score
			best = occ
		}
	}
	return best
}

func rankRequirements(ranked []careeronestop.RankedSkill, sourceRole string) []Requirement {
	ordered := make([]careeronestop.RankedSkill, len(ranked))
	copy(ordered, ranked)
	// SliceStable keeps the provider's order for equally important skills.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Importance > ordered[j].Importance
	})

	seen := make(map[string]struct{}, len(ordered))
	requirements := make([]Requirement, 0, len(ordered))
	for _, skill := range ordered {
		name := Canonical(skill.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		requirements = append(requirements, Requirement{
			Name:       name,
			Importance: skill.Importance,
			SourceRole: sourceRole,
		})
		if len(requirements) >= maxRequirements {
			break
		}
	}
	return requirements
}

// aliasFallback matches the embedded alias table against occupation titles
// and descriptions when the provider returns no detailed skill rows.
func aliasFallback(occupations []careeronestop.Occupation, sourceRole string) []Requirement {
	var corpus strings.Builder
	for _, occ := range occupations {
		corpus.WriteString(strings.ToLower(occ.Title))
		corpus.WriteString(" ")
		corpus.WriteString(strings.ToLower(occ.Description))
		corpus.WriteString(" ")
	}
	text := corpus.String()

	var requirements []Requirement
	for canonical, aliases := range Aliases {
		pool := append([]string{canonical}, aliases...)
		for _, alias := range pool {
			if alias != "" && strings.Contains(text, alias) {
				requirements = append(requirements, Requirement{
					Name:       canonical,
					Importance: aliasFallbackImportance,
					SourceRole: sourceRole,
				})
				break
			}
		}
	}
	sort.Slice(requirements, func(i, j int) bool {
		return requirements[i].Name < requirements[j].Name
	})
	return requirements
}
