// Package geo is the best-effort geolocation collaborator. Lookups run with
// a strict timeout, never panic, and callers absorb failures without
// blocking conversation flow.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

// Info is the enrichment payload attached to a lead.
type Info struct {
	IPAddress string
	City      string
	Region    string
	Country   string
	Location  string
}

// Client queries an ip-api style endpoint using the caller's own network
// identity.
type Client struct {
	http     *http.Client
	endpoint string
	logger   *zap.Logger
}

// NewClient builds the geolocation client.
func NewClient(cfg config.GeoConfig, logger *zap.Logger) *Client {
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout()},
		endpoint: cfg.Endpoint,
		logger:   logger,
	}
}

type apiResponse struct {
	Status     string `json:"status"`
	Query      string `json:"query"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
	Message    string `json:"message"`
}

// Lookup resolves the caller's network location. Errors are returned, never
// thrown; the caller degrades by leaving enrichment fields empty.
func (c *Client) Lookup(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation lookup returned status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Status != "" && payload.Status != "success" {
		return nil, fmt.Errorf("geolocation lookup failed: %s", payload.Message)
	}

	info := &Info{
		IPAddress: payload.Query,
		City:      payload.City,
		Region:    payload.RegionName,
		Country:   payload.Country,
	}
	if payload.City != "" && payload.Country != "" {
		info.Location = payload.City + ", " + payload.Country
	} else if payload.Country != "" {
		info.Location = payload.Country
	}
	return info, nil
}
