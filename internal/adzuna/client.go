// Package adzuna is a client for the Adzuna jobs API, the engine's
// job-vacancy and salary benchmark provider.
package adzuna

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/pathwise/mri-engine/internal/metrics"
)

const (
	apiURL          = "https://api.adzuna.com/v1/api/jobs"
	contentEncoding = "gzip, deflate, br"

	requestTimeout = 12 * time.Second
)

type Client struct {
	appID      string
	appKey     string
	country    string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(logger *zap.Logger, appID, appKey, country string) (*Client, error) {
	if appID == "" {
		return nil, fmt.Errorf("adzuna app id is required")
	}
	if appKey == "" {
		return nil, fmt.Errorf("adzuna app key is required")
	}
	if country == "" {
		country = "us"
	}
	return &Client{
		appID:   appID,
		appKey:  appKey,
		country: country,
		APIURL:  apiURL,
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}, nil
}

// getJSON performs an authenticated GET against an API path under the
// configured country and decodes the JSON response into target.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s%s", c.APIURL, c.country, path), nil)
	if err != nil {
		return err
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("app_id", c.appID)
	q.Set("app_key", c.appKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept-Encoding", contentEncoding)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.ProviderRequest("adzuna", "error")
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			metrics.ProviderRequest("adzuna", "error")
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		metrics.ProviderRequest("adzuna", "error")
		return err
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequest("adzuna", "bad_status")
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	metrics.ProviderRequest("adzuna", "ok")

	if target == nil {
		return nil
	}
	return json.Unmarshal(data, target)
}
