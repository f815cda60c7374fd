package careeronestop

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/pathwise/mri-engine/internal/provider"
)

// Occupation is one ranked occupation row from the search endpoint.
type Occupation struct {
	Code        string
	Title       string
	Description string
}

// RankedSkill is a required skill or knowledge area with its importance.
type RankedSkill struct {
	Name       string
	Importance float64
}

// The provider renames payload keys between API revisions; every field is
// read through an ordered list of candidates.
var (
	occupationListKeys  = []string{"OccupationList", "OccupationDetailList", "Occupations", "occupationList"}
	occupationTitleKeys = []string{"OnetTitle", "Title", "Occupation"}
	occupationCodeKeys  = []string{"OnetCode", "OccupationCode", "Code"}
	occupationDescKeys  = []string{"OccupationDescription", "Duties", "BrightOutlook", "Description"}
	skillListKeys       = []string{"SkillsDataList", "KnowledgeDataList"}
	skillNameKeys       = []string{"ElementName", "Skill", "name"}
	skillValueKeys      = []string{"Importance", "DataValue"}
)

// SearchOccupations queries the provider with free role text and returns the
// ranked occupation rows. An empty list is reported as provider.ErrNoData.
func (c *Client) SearchOccupations(ctx context.Context, role string) ([]Occupation, error) {
	if role == "" {
		role = "software developer"
	}

	path := fmt.Sprintf("/v1/occupation/%s/%s/US/0/10", c.userID, url.PathEscape(role))

	var payload map[string]any
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return nil, fmt.Errorf("searching occupations for %q: %w", role, err)
	}

	rows := listOfMaps(payload, occupationListKeys)
	occupations := make([]Occupation, 0, len(rows))
	for _, row := range rows {
		occ := Occupation{
			Code:        firstString(row, occupationCodeKeys),
			Title:       firstString(row, occupationTitleKeys),
			Description: firstString(row, occupationDescKeys),
		}
		if occ.Title == "" {
			continue
		}
		occupations = append(occupations, occ)
	}

	if len(occupations) == 0 {
		return nil, fmt.Errorf("no occupations for role %q: %w", role, provider.ErrNoData)
	}
	return occupations, nil
}

// OccupationSkills fetches the detailed skill and knowledge lists for an
// occupation code, with per-row importance values.
func (c *Client) OccupationSkills(ctx context.Context, code string) ([]RankedSkill, error) {
	if code == "" {
		return nil, fmt.Errorf("occupation code is required")
	}

	path := fmt.Sprintf("/v1/occupation/%s/%s/US", c.userID, url.PathEscape(code))
	q := url.Values{}
	q.Set("skills", "true")
	q.Set("knowledge", "true")
	q.Set("ability", "true")

	var payload map[string]any
	if err := c.getJSON(ctx, path, q, &payload); err != nil {
		return nil, fmt.Errorf("fetching occupation %s details: %w", code, err)
	}

	details := listOfMaps(payload, []string{"OccupationDetail"})
	if len(details) == 0 {
		return nil, nil
	}
	detail := details[0]

	var ranked []RankedSkill
	for _, listKey := range skillListKeys {
		for _, row := range listOfMaps(detail, []string{listKey}) {
			name := firstString(row, skillNameKeys)
			if name == "" {
				continue
			}
			ranked = append(ranked, RankedSkill{
				Name:       name,
				Importance: firstFloat(row, skillValueKeys),
			})
		}
	}
	return ranked, nil
}

func listOfMaps(payload map[string]any, keys []string) []map[string]any {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}
		var rows []map[string]any
		if err := mapstructure.Decode(raw, &rows); err != nil {
			continue
		}
		if len(rows) > 0 {
			return rows
		}
	}
	return nil
}

func firstString(row map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstFloat(row map[string]any, keys []string) float64 {
	for _, key := range keys {
		v, ok := row[key]
		if !ok {
			continue
		}
		switch typed := v.(type) {
		case float64:
			return typed
		case int:
			return float64(typed)
		case string:
			if parsed, err := strconv.ParseFloat(typed, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}
