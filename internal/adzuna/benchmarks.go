package adzuna

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Point is one step of a vacancy-count time series.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Posting is a trimmed current job posting used for employer sampling and
// signal ingestion.
type Posting struct {
	Title       string
	Description string
	Company     string
}

// Histogram maps a salary bucket's lower bound to the posting count in it.
type Histogram map[float64]float64

// History fetches the monthly vacancy-count series for (what, where) over the
// trailing months. The provider has shipped the rows under both "month" and
// "results" keys.
func (c *Client) History(ctx context.Context, what, where string, months int) ([]Point, error) {
	q := url.Values{}
	q.Set("what", what)
	q.Set("where", where)
	q.Set("months", strconv.Itoa(months))

	var payload map[string]any
	if err := c.getJSON(ctx, "/history", q, &payload); err != nil {
		return nil, fmt.Errorf("fetching vacancy history for %q in %q: %w", what, where, err)
	}

	rows := historyRows(payload)
	points := make([]Point, 0, len(rows))
	for idx, row := range rows {
		points = append(points, Point{X: float64(idx), Y: historyCount(row)})
	}
	return points, nil
}

func historyRows(payload map[string]any) []map[string]any {
	for _, key := range []string{"month", "results"} {
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

func historyCount(row map[string]any) float64 {
	for _, key := range []string{"count", "vacancies"} {
		switch v := row[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}

// SalaryHistogram fetches the local salary distribution for (what, where).
// Bucket keys are parsed as the bucket's lower bound; unparseable keys are
// skipped.
func (c *Client) SalaryHistogram(ctx context.Context, what, where string) (Histogram, error) {
	q := url.Values{}
	q.Set("what", what)
	q.Set("where", where)

	var payload map[string]any
	if err := c.getJSON(ctx, "/histogram", q, &payload); err != nil {
		return nil, fmt.Errorf("fetching salary histogram for %q in %q: %w", what, where, err)
	}

	var buckets map[string]any
	for _, key := range []string{"histogram", "results"} {
		if raw, ok := payload[key].(map[string]any); ok && len(raw) > 0 {
			buckets = raw
			break
		}
	}

	histogram := make(Histogram, len(buckets))
	for rawBound, rawCount := range buckets {
		bound, err := strconv.ParseFloat(strings.SplitN(rawBound, "-", 2)[0], 64)
		if err != nil {
			continue
		}
		count, ok := rawCount.(float64)
		if !ok {
			continue
		}
		histogram[bound] = count
	}
	return histogram, nil
}

// WeightedAverage returns the count-weighted average salary, or 0 when the
// histogram is empty.
func (h Histogram) WeightedAverage() float64 {
	var weightedSum, total float64
	for bound, count := range h {
		weightedSum += bound * count
		total += count
	}
	if total <= 0 {
		return 0
	}
	return weightedSum / total
}

// PercentileBelow returns the share (0-100) of postings in buckets strictly
// below value.
func (h Histogram) PercentileBelow(value float64) float64 {
	var below, total float64
	for bound, count := range h {
		total += count
		if bound < value {
			below += count
		}
	}
	if total <= 0 {
		return 0
	}
	return below / total * 100
}

// Bounds returns the bucket lower bounds in ascending order.
func (h Histogram) Bounds() []float64 {
	bounds := make([]float64, 0, len(h))
	for bound := range h {
		bounds = append(bounds, bound)
	}
	sort.Float64s(bounds)
	return bounds
}

// SearchCount returns the number of postings for (what, where) published in
// the last maxDaysOld days.
func (c *Client) SearchCount(ctx context.Context, what, where string, maxDaysOld int) (float64, error) {
	q := url.Values{}
	q.Set("what", what)
	q.Set("where", where)
	q.Set("max_days_old", strconv.Itoa(maxDaysOld))
	q.Set("results_per_page", "1")

	var payload struct {
		Count float64 `json:"count"`
	}
	if err := c.getJSON(ctx, "/search/1", q, &payload); err != nil {
		return 0, fmt.Errorf("fetching posting count for %q in %q: %w", what, where, err)
	}
	return payload.Count, nil
}

// Postings fetches up to limit current postings for (what, where).
func (c *Client) Postings(ctx context.Context, what, where string, limit int) ([]Posting, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}

	q := url.Values{}
	q.Set("what", what)
	if where != "" {
		q.Set("where", where)
	}
	q.Set("results_per_page", strconv.Itoa(limit))

	var payload struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Company     struct {
				DisplayName string `json:"display_name"`
			} `json:"company"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "/search/1", q, &payload); err != nil {
		return nil, fmt.Errorf("fetching postings for %q in %q: %w", what, where, err)
	}

	postings := make([]Posting, 0, len(payload.Results))
	for _, row := range payload.Results {
		postings = append(postings, Posting{
			Title:       row.Title,
			Description: row.Description,
			Company:     row.Company.DisplayName,
		})
	}
	return postings, nil
}
