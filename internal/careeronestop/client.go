// Package careeronestop is a client for the CareerOneStop occupation API,
// the engine's occupational skill-standards provider.
package careeronestop

import (
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
	apiURL      = "https://api.careeronestop.org"
	contentType = "application/json"

	// The provider is slow on cold occupation queries.
	requestTimeout = 20 * time.Second
)

type Client struct {
	token      string
	userID     string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(logger *zap.Logger, userID, token string) *Client {
	return &Client{
		token:  token,
		userID: userID,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", contentType)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.ProviderRequest("careeronestop", "error")
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequest("careeronestop", "error")
		return err
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequest("careeronestop", "bad_status")
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	metrics.ProviderRequest("careeronestop", "ok")

	if target == nil {
		return nil
	}
	return json.Unmarshal(data, target)
}
