// Package github is a minimal client for the GitHub REST API and raw file
// host, the engine's code-hosting provider.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/metrics"
	"github.com/pathwise/mri-engine/internal/provider"
)

const (
	apiURL    = "https://api.github.com"
	rawURL    = "https://raw.githubusercontent.com"
	userAgent = "pathwise/mri-engine"

	// Repository introspection must stay cheap; a slow GitHub call should
	// never dominate a scoring request.
	requestTimeout = 3 * time.Second
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
	RawURL     string
}

// New creates a client. The token is optional; unauthenticated requests work
// with lower rate limits.
func New(logger *zap.Logger, token string) *Client {
	return &Client{
		token:  token,
		APIURL: apiURL,
		RawURL: rawURL,
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// Profile is the subset of a user profile the engine reads.
type Profile struct {
	Login       string `json:"login"`
	PublicRepos int    `json:"public_repos"`
}

// Repo is the subset of repository metadata the engine reads.
type Repo struct {
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	Stars     int       `json:"stargazers_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) get(ctx context.Context, rawRequestURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawRequestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	c.logger.Debug("make request", zap.String("url", rawRequestURL))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.ProviderRequest("github", "error")
		return nil, err
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	requestURL := c.APIURL + path
	if q != nil {
		requestURL += "?" + q.Encode()
	}

	resp, err := c.get(ctx, requestURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequest("github", "error")
		return err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		metrics.ProviderRequest("github", "ok")
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		metrics.ProviderRequest("github", "rate_limited")
		return fmt.Errorf("%s: %w", path, provider.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		metrics.ProviderRequest("github", "not_found")
		return fmt.Errorf("%s: %w", path, provider.ErrNoData)
	default:
		metrics.ProviderRequest("github", "bad_status")
		return fmt.Errorf("%s: bad status: %s", path, resp.Status)
	}

	if target == nil {
		return nil
	}
	return json.Unmarshal(data, target)
}

// Profile fetches a user's profile.
func (c *Client) Profile(ctx context.Context, user string) (*Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(user), nil, &profile); err != nil {
		return nil, fmt.Errorf("fetching profile for %q: %w", user, err)
	}
	return &profile, nil
}

// Repos lists up to limit of the owner's repositories, most recently updated
// first.
func (c *Client) Repos(ctx context.Context, owner string, limit int) ([]Repo, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("sort", "updated")
	q.Set("direction", "desc")
	q.Set("type", "owner")

	var repos []Repo
	if err := c.getJSON(ctx, fmt.Sprintf("/users/%s/repos", url.PathEscape(owner)), q, &repos); err != nil {
		return nil, fmt.Errorf("listing repos for %q: %w", owner, err)
	}
	return repos, nil
}

// Languages returns the lowercased language names declared for a repository.
func (c *Client) Languages(ctx context.Context, owner, repo string) ([]string, error) {
	var breakdown map[string]int64
	path := fmt.Sprintf("/repos/%s/%s/languages", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.getJSON(ctx, path, nil, &breakdown); err != nil {
		return nil, fmt.Errorf("listing languages for %s/%s: %w", owner, repo, err)
	}

	languages := make([]string, 0, len(breakdown))
	for name := range breakdown {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			languages = append(languages, strings.ToLower(trimmed))
		}
	}
	sort.Strings(languages)
	return languages, nil
}

// HasReadme reports whether the repository exposes a readme. Rate-limit
// responses surface as provider.ErrRateLimited so samplers can stop early.
func (c *Client) HasReadme(ctx context.Context, owner, repo string) (bool, error) {
	path := fmt.Sprintf("/repos/%s/%s/readme", url.PathEscape(owner), url.PathEscape(repo))
	err := c.getJSON(ctx, path, nil, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, provider.ErrNoData):
		return false, nil
	default:
		return false, err
	}
}

// RawFile fetches a file's text from the repository HEAD via the raw host.
// A missing file is provider.ErrNoData.
func (c *Client) RawFile(ctx context.Context, owner, repo, path string) (string, error) {
	requestURL := fmt.Sprintf("%s/%s/%s/HEAD/%s", c.RawURL, url.PathEscape(owner), url.PathEscape(repo), path)

	resp, err := c.get(ctx, requestURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequest("github", "error")
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequest("github", "not_found")
		return "", fmt.Errorf("%s/%s/%s: %w", owner, repo, path, provider.ErrNoData)
	}
	metrics.ProviderRequest("github", "ok")
	return string(data), nil
}
