// Package quota talks to the external quota service. Checks fail open:
// if the service is unreachable or erroring, the platform keeps working
// and the check is logged as skipped.
package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 5 * time.Second

// SeatDecision is the quota service's answer to a seat check.
type SeatDecision struct {
	Allowed bool  `json:"allowed"`
	Limit   int64 `json:"limit"`
	Used    int64 `json:"used"`
}

// Client calls the quota service over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the quota service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// CheckSeats asks whether the org may grow by requested seats. Network
// failures and 5xx responses allow the operation; only an explicit denial
// from a healthy quota service blocks it.
func (c *Client) CheckSeats(ctx context.Context, orgID string, requested int64) bool {
	if c == nil || c.BaseURL == "" {
		return true
	}
	u := fmt.Sprintf("%s/v1/orgs/%s/seats?requested=%s",
		c.BaseURL, url.PathEscape(orgID), strconv.FormatInt(requested, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		log.Printf("quota: building seat check request for org %s: %v", orgID, err)
		return true
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Printf("quota: seat check for org %s unreachable, allowing: %v", orgID, err)
		return true
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		log.Printf("quota: seat check for org %s returned %d, allowing", orgID, resp.StatusCode)
		return true
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("quota: seat check for org %s denied with status %d", orgID, resp.StatusCode)
		return false
	}
	var d SeatDecision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		log.Printf("quota: decoding seat check for org %s, allowing: %v", orgID, err)
		return true
	}
	if !d.Allowed {
		log.Printf("quota: org %s at seat limit (%d/%d)", orgID, d.Used, d.Limit)
	}
	return d.Allowed
}
