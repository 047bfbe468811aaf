// Package oura talks to the Oura cloud API: endpoint routing, request
// authentication, token caching and the per-sensor data definitions.
package oura

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/ouraview/internal/metrics"
)

// maxAuthRetries bounds the refresh-and-retry loop on Unauthorized
// responses.
const maxAuthRetries = 3

// ErrUnauthorized reports that the API still rejected the token after
// exhausting refresh attempts.
var ErrUnauthorized = errors.New("oura: unauthorized after refreshing access token")

// TokenSource supplies access tokens for API requests.
type TokenSource interface {
	// Token returns a usable access token, exchanging or loading
	// credentials as needed.
	Token(ctx context.Context) (string, error)
	// Refresh forces a new access token and returns it.
	Refresh(ctx context.Context) (string, error)
}

// Client fetches data from the Oura API.
type Client struct {
	client *http.Client
	tokens TokenSource
}

func NewClient(tokens TokenSource) *Client {
	return &Client{
		client: &http.Client{Timeout: 30 * time.Second},
		tokens: tokens,
	}
}

// Fetch runs one GET against ep for the inclusive date range. An
// Unauthorized response triggers a token refresh and a retry, at most
// maxAuthRetries times. Rate-limit statuses are retried with backoff
// inside each attempt; any other failure is returned as is.
func (c *Client) Fetch(ctx context.Context, ep Endpoint, startDate, endDate string) (map[string]any, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	for retries := 0; retries < maxAuthRetries; retries++ {
		payload, status, err := c.get(ctx, ep, token, startDate, endDate)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || payload["message"] == "Unauthorized" {
			token, err = c.tokens.Refresh(ctx)
			if err != nil {
				return nil, fmt.Errorf("refresh access token: %w", err)
			}
			continue
		}
		return payload, nil
	}
	return nil, ErrUnauthorized
}

// UserInfo fetches the account profile. Used at startup to validate
// credentials.
func (c *Client) UserInfo(ctx context.Context) (map[string]any, error) {
	return c.Fetch(ctx, EndpointUserInfo, "", "")
}

func (c *Client) get(ctx context.Context, ep Endpoint, token, startDate, endDate string) (map[string]any, int, error) {
	reqURL := requestURL(ep, token, startDate, endDate)

	var body []byte
	var status int
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if ep.Auth == AuthBearer {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		started := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			metrics.APICallsTotal.WithLabelValues(ep.ID, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", ep.ID, err))
		}
		defer resp.Body.Close()

		metrics.APILatency.WithLabelValues(ep.ID).Observe(time.Since(started).Seconds())
		metrics.APICallsTotal.WithLabelValues(ep.ID, strconv.Itoa(resp.StatusCode)).Inc()
		status = resp.StatusCode

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnauthorized {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", ep.ID, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, status, err
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		if status == http.StatusUnauthorized {
			return map[string]any{}, status, nil
		}
		return nil, status, fmt.Errorf("unmarshal %s: %w", ep.ID, err)
	}
	return payload, status, nil
}

// requestURL builds the endpoint URL with the auth and range
// parameters the endpoint's API generation expects.
func requestURL(ep Endpoint, token, startDate, endDate string) string {
	q := url.Values{}
	if ep.Auth == AuthQueryToken {
		q.Set("access_token", token)
	}
	if startDate != "" {
		switch ep.Params {
		case ParamsStartEnd:
			q.Set("start", startDate)
			q.Set("end", endDate)
		case ParamsStartEndDate:
			q.Set("start_date", startDate)
			q.Set("end_date", endDate)
		case ParamsStartEndDatetime:
			q.Set("start_datetime", startDate+"T00:00:00")
			q.Set("end_datetime", endDate+"T23:59:59")
		}
	}
	if len(q) == 0 {
		return ep.URL
	}
	return ep.URL + "?" + q.Encode()
}
