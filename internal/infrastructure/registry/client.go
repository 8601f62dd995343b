package registry

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

	"hygienefix/internal/bootstrap/config"
	"hygienefix/internal/errs"
	"hygienefix/internal/ports"
)

// Client talks to the FHRS public ratings API. It is stateless and never
// retries; a failed page is the orchestrator's problem.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
}

var _ ports.Registry = (*Client)(nil)

func NewClient(cfg config.RegistryConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Establishments []ports.RegistryEstablishment `json:"establishments"`
	Meta           struct {
		TotalCount int `json:"totalCount"`
		TotalPages int `json:"totalPages"`
	} `json:"meta"`
}

// FetchLowRatedPage fetches one page of establishments rated at or below
// maxRating. A maxRating of 0 is valid and selects only the worst tier.
func (c *Client) FetchLowRatedPage(ctx context.Context, page int, maxRating int) (ports.RegistryPage, error) {
	if ctx == nil {
		return ports.RegistryPage{}, errors.New("context is required")
	}
	if page < 1 {
		return ports.RegistryPage{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if maxRating < 0 {
		return ports.RegistryPage{}, fmt.Errorf("maxRating must be >= 0, got %d", maxRating)
	}

	params := url.Values{}
	params.Set("ratingKey", strconv.Itoa(maxRating))
	params.Set("ratingOperatorKey", "LessThanOrEqual")
	params.Set("pageNumber", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("sortOptionKey", "rating")

	body, err := c.get(ctx, "/Establishments?"+params.Encode())
	if err != nil {
		return ports.RegistryPage{}, err
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ports.RegistryPage{}, errs.Wrap(err, "decode registry response")
	}

	return ports.RegistryPage{
		Establishments: decoded.Establishments,
		TotalPages:     decoded.Meta.TotalPages,
		TotalCount:     decoded.Meta.TotalCount,
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errs.Wrap(err, "build registry request")
	}
	req.Header.Set("x-api-version", "2")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, "call registry")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("registry responded %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, "read registry response")
	}
	return body, nil
}
