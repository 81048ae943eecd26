// Package streamapi provides a Go client SDK for the stream service HTTP API:
// stream and subscription management, a batching producer with flow control,
// and a pull-based acknowledging consumer.
package streamapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

// Client is a thin HTTP wrapper for the stream service API.
type Client struct {
	URL        string
	HTTPClient *http.Client
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithToken attaches a static bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTP2 switches the client to an h2c transport (HTTP/2 over cleartext
// TCP). Long-lived fetch polls multiplex over one connection instead of
// holding one TCP connection per consumer.
func WithHTTP2() Option {
	return func(c *Client) { c.HTTPClient = h2cHTTPClient() }
}

// New creates a client for a stream service base URL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		URL: strings.TrimRight(url, "/"),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func h2cHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	tr := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		ReadIdleTimeout: 30 * time.Second,
		PingTimeout:     10 * time.Second,
	}
	// No overall timeout: fetch long-polls hold requests open. Deadlines come
	// from the per-request context.
	return &http.Client{Transport: tr}
}

// CreateStream creates a stream.
func (c *Client) CreateStream(ctx context.Context, spec StreamSpec) error {
	return c.post(ctx, "/api/v1/streams", spec, nil)
}

// DeleteStream removes a stream.
func (c *Client) DeleteStream(ctx context.Context, name string) error {
	return c.doRequest(ctx, "DELETE", "/api/v1/streams/"+name, nil, nil)
}

// ListStreams returns all streams.
func (c *Client) ListStreams(ctx context.Context) ([]StreamInfo, error) {
	var result struct {
		Streams []StreamInfo `json:"streams"`
	}
	if err := c.get(ctx, "/api/v1/streams", &result); err != nil {
		return nil, err
	}
	return result.Streams, nil
}

// CreateSubscription creates a subscription on a stream.
func (c *Client) CreateSubscription(ctx context.Context, spec SubscriptionSpec) error {
	return c.post(ctx, "/api/v1/subscriptions", spec, nil)
}

// DeleteSubscription removes a subscription.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	return c.doRequest(ctx, "DELETE", "/api/v1/subscriptions/"+id, nil, nil)
}

type appendRequest struct {
	Records []Record `json:"records"`
}

type appendResponse struct {
	RecordIDs []string `json:"record_ids"`
}

// Append writes a batch of records to a stream.
func (c *Client) Append(ctx context.Context, stream string, records []Record) ([]string, error) {
	for _, rec := range records {
		if err := rec.validate(); err != nil {
			return nil, err
		}
	}
	var result appendResponse
	if err := c.post(ctx, "/api/v1/streams/"+stream+"/records", appendRequest{Records: records}, &result); err != nil {
		return nil, err
	}
	if len(result.RecordIDs) != len(records) {
		return nil, fmt.Errorf("append returned %d record IDs for %d records", len(result.RecordIDs), len(records))
	}
	return result.RecordIDs, nil
}

type fetchRequest struct {
	MaxRecords  int `json:"max_records"`
	WaitSeconds int `json:"wait_seconds"`
}

type fetchResponse struct {
	Records []ReceivedRecord `json:"records"`
}

// Fetch long-polls a subscription for records.
func (c *Client) Fetch(ctx context.Context, subscription string, maxRecords int, wait time.Duration) ([]ReceivedRecord, error) {
	req := fetchRequest{
		MaxRecords:  maxRecords,
		WaitSeconds: int(wait / time.Second),
	}
	var result fetchResponse
	if err := c.post(ctx, "/api/v1/subscriptions/"+subscription+"/fetch", req, &result); err != nil {
		return nil, err
	}
	return result.Records, nil
}

type ackRequest struct {
	RecordIDs []string `json:"record_ids"`
}

// Ack acknowledges delivered records.
func (c *Client) Ack(ctx context.Context, subscription string, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	return c.post(ctx, "/api/v1/subscriptions/"+subscription+"/ack", ackRequest{RecordIDs: recordIDs}, nil)
}

// Healthz checks service liveness.
func (c *Client) Healthz(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

// HTTP helpers

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.doRequest(ctx, "GET", path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.doRequest(ctx, "POST", path, body, result)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		json.Unmarshal(data, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Code: ErrorCode(apiErr.Code), Msg: apiErr.Error, Status: resp.StatusCode}
	}

	if result != nil {
		return json.Unmarshal(data, result)
	}
	return nil
}

var _ Transport = (*Client)(nil)
