// Package broker queries attribute histories from an STH-Comet context broker.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cellar_monitor/internal/models"
)

const (
	headerService     = "fiware-service"
	headerServicePath = "fiware-servicepath"

	defaultEntityType = "device"
	defaultLastN      = 20
	defaultTimeout    = 10 * time.Second
	maxBodyBytes      = 4 << 20 // 4 MB
)

// Config describes where the entity history lives.
type Config struct {
	BaseURL     string
	Service     string
	ServicePath string
	EntityType  string
	EntityID    string
	LastN       int
	Timeout     time.Duration
}

// Client fetches the last N values of one entity attribute.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a client; a nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.EntityType == "" {
		cfg.EntityType = defaultEntityType
	}
	if cfg.LastN <= 0 {
		cfg.LastN = defaultLastN
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type historyResponse struct {
	ContextResponses []struct {
		ContextElement *struct {
			Attributes []struct {
				Name   string          `json:"name"`
				Values json.RawMessage `json:"values"`
			} `json:"attributes"`
		} `json:"contextElement"`
	} `json:"contextResponses"`
}

// HistoryURL builds the query URL for attr.
func (c *Client) HistoryURL(attr string) (string, error) {
	u, err := url.JoinPath(c.cfg.BaseURL,
		"STH", "v1", "contextEntities",
		"type", c.cfg.EntityType,
		"id", c.cfg.EntityID,
		"attributes", attr,
	)
	if err != nil {
		return "", fmt.Errorf("build history url: %w", err)
	}
	return u + "?lastN=" + strconv.Itoa(c.cfg.LastN), nil
}

// History returns the raw records for attr, oldest first as the broker orders them.
func (c *Client) History(ctx context.Context, attr string) ([]models.RawRecord, error) {
	target, err := c.HistoryURL(attr)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("new request for %q: %w", attr, err)
	}
	req.Header.Set(headerService, c.cfg.Service)
	req.Header.Set(headerServicePath, c.cfg.ServicePath)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Attribute: attr, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &NetworkError{Attribute: attr, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Attribute: attr, Err: err}
	}
	return decodeHistory(attr, body)
}

// decodeHistory extracts contextResponses[0].contextElement.attributes[0].values.
func decodeHistory(attr string, body []byte) ([]models.RawRecord, error) {
	var hr historyResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return nil, &ShapeError{Attribute: attr, Reason: "invalid json", Err: err}
	}
	if len(hr.ContextResponses) == 0 {
		return nil, &ShapeError{Attribute: attr, Reason: "missing contextResponses"}
	}
	el := hr.ContextResponses[0].ContextElement
	if el == nil {
		return nil, &ShapeError{Attribute: attr, Reason: "missing contextElement"}
	}
	if len(el.Attributes) == 0 {
		return nil, &ShapeError{Attribute: attr, Reason: "missing attributes"}
	}
	raw := bytes.TrimSpace(el.Attributes[0].Values)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &ShapeError{Attribute: attr, Reason: "values is not an array"}
	}
	var records []models.RawRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &ShapeError{Attribute: attr, Reason: "invalid values", Err: err}
	}
	return records, nil
}
