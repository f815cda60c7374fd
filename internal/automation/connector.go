// Package automation runs the periodic market-signal ingestion: provider
// connectors turn raw postings and occupation text into demand signal rows,
// and a scheduler walks pathways on an interval.
package automation

import (
	"context"
	"sort"
	"strings"

	"github.com/pathwise/mri-engine/internal/adzuna"
	"github.com/pathwise/mri-engine/internal/careeronestop"
	"github.com/pathwise/mri-engine/internal/skills"
)

const (
	maxSignalRows    = 25
	fallbackTokenMax = 8
	minTokenLength   = 3
)

// curatedTokens are the skill phrases scanned for in provider text, in a
// stable reporting order.
var curatedTokens = []string{
	"python", "javascript", "typescript", "java", "golang", "rust",
	"sql", "postgresql", "mongodb", "redis",
	"rest api", "graphql", "microservices",
	"aws", "azure", "gcp", "kubernetes", "docker", "terraform",
	"machine learning", "data analysis", "prompt engineering",
	"system design", "ci/cd", "git", "linux",
	"cybersecurity", "threat hunting", "siem",
	"react", "node",
}

// SignalRow is one extracted demand observation, before it is stamped with
// a pathway and window by the scheduler.
type SignalRow struct {
	SkillName   string
	Frequency   float64
	SourceCount int
}

// Connector fetches provider text for a role query and distills it into
// signal rows.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, roleQuery, location string) ([]SignalRow, error)
}

// extractSignals scans the documents for curated skill tokens. Frequency is
// the share of documents mentioning the token. When no curated token
// appears at all, the first distinct words of the corpus stand in so a
// fetch is never silently empty.
func extractSignals(documents []string) []SignalRow {
	if len(documents) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, doc := range documents {
		lowered := strings.ToLower(doc)
		for _, token := range curatedTokens {
			if strings.Contains(lowered, token) {
				counts[token]++
			}
		}
	}

	var rows []SignalRow
	if len(counts) > 0 {
		for _, token := range curatedTokens {
			if n, ok := counts[token]; ok {
				rows = append(rows, SignalRow{
					SkillName:   token,
					Frequency:   float64(n) / float64(len(documents)),
					SourceCount: n,
				})
			}
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Frequency > rows[j].Frequency })
	} else {
		rows = fallbackSignals(documents)
	}

	if len(rows) > maxSignalRows {
		rows = rows[:maxSignalRows]
	}
	return rows
}

func fallbackSignals(documents []string) []SignalRow {
	seen := make(map[string]bool)
	var rows []SignalRow
	for _, doc := range documents {
		for _, word := range strings.Fields(strings.ToLower(doc)) {
			word = strings.Trim(word, ".,;:()[]\"'")
			if len(word) < minTokenLength || seen[word] {
				continue
			}
			seen[word] = true
			rows = append(rows, SignalRow{
				SkillName:   word,
				Frequency:   1.0 / float64(len(documents)),
				SourceCount: 1,
			})
			if len(rows) == fallbackTokenMax {
				return rows
			}
		}
	}
	return rows
}

// PostingSource is the posting-search slice of the vacancy provider.
// *adzuna.Client satisfies it.
type PostingSource interface {
	Postings(ctx context.Context, what, where string, limit int) ([]adzuna.Posting, error)
}

// AdzunaConnector extracts demand signals from live job postings.
type AdzunaConnector struct {
	postings PostingSource
}

func NewAdzunaConnector(postings PostingSource) *AdzunaConnector {
	return &AdzunaConnector{postings: postings}
}

func (c *AdzunaConnector) Name() string { return "adzuna" }

func (c *AdzunaConnector) Fetch(ctx context.Context, roleQuery, location string) ([]SignalRow, error) {
	postings, err := c.postings.Postings(ctx, roleQuery, location, 50)
	if err != nil {
		return nil, err
	}

	documents := make([]string, 0, len(postings))
	for _, p := range postings {
		documents = append(documents, p.Title+" "+p.Description)
	}
	return extractSignals(documents), nil
}

// OccupationSource is the occupation-search slice of the standards
// provider. *careeronestop.Client satisfies it.
type OccupationSource interface {
	SearchOccupations(ctx context.Context, role string) ([]careeronestop.Occupation, error)
	OccupationSkills(ctx context.Context, code string) ([]careeronestop.RankedSkill, error)
}

// CareerOneStopConnector extracts demand signals from occupational
// standards: the best-matching occupation's ranked skills become rows,
// with the importance rating standing in for observed frequency.
type CareerOneStopConnector struct {
	occupations OccupationSource
}

func NewCareerOneStopConnector(occupations OccupationSource) *CareerOneStopConnector {
	return &CareerOneStopConnector{occupations: occupations}
}

func (c *CareerOneStopConnector) Name() string { return "careeronestop" }

func (c *CareerOneStopConnector) Fetch(ctx context.Context, roleQuery, _ string) ([]SignalRow, error) {
	occupations, err := c.occupations.SearchOccupations(ctx, roleQuery)
	if err != nil {
		return nil, err
	}

	ranked, err := c.occupations.OccupationSkills(ctx, occupations[0].Code)
	if err != nil {
		return nil, err
	}

	rows := make([]SignalRow, 0, len(ranked))
	for _, skill := range ranked {
		rows = append(rows, SignalRow{
			SkillName:   skills.Canonical(skill.Name),
			Frequency:   skill.Importance / 100,
			SourceCount: 1,
		})
		if len(rows) == maxSignalRows {
			break
		}
	}
	return rows, nil
}
