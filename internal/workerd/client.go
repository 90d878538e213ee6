// Package workerd implements the HTTP contract consumed from worker
// servers: health, stats, account connect/status/qr/disconnect.
package workerd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
)

// HealthResponse is the worker /health reply.
type HealthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version"`
	Timestamp int64   `json:"timestamp"`
}

// StatsResponse is the worker /stats reply.
type StatsResponse struct {
	Accounts struct {
		Total int `json:"total"`
	} `json:"accounts"`
}

// ConnectResponse is the reply to POST /accounts/connect. QR is present when
// the worker started a fresh pairing.
type ConnectResponse struct {
	QR string `json:"qr"`
}

// StatusResponse is the worker's native view of one account session.
// LastActivity is left untyped: workers report it as epoch millis or as a
// formatted timestamp depending on version.
type StatusResponse struct {
	Status       string      `json:"status"`
	LastActivity interface{} `json:"lastActivity"`
}

// QRResponse is the reply to GET /accounts/{id}/qr.
type QRResponse struct {
	QR string `json:"qr"`
}

// Client talks to worker servers. All calls are bounded by the timeout the
// caller passes; transport failures are returned as errors for the caller to
// absorb.
type Client struct {
	debug bool
}

func NewClient(debug bool) *Client {
	return &Client{debug: debug}
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// Health probes the worker health endpoint and returns the reply together
// with the observed round-trip time. Elapsed is valid even on failure.
func (c *Client) Health(ctx context.Context, baseURL string, timeout time.Duration) (*HealthResponse, time.Duration, error) {
	var (
		resp HealthResponse
		code int
	)
	start := time.Now()
	err := gout.GET(joinURL(baseURL, "/health")).
		WithContext(ctx).
		SetTimeout(timeout).
		Debug(c.debug).
		BindJSON(&resp).
		Code(&code).
		Do()
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	if code < 200 || code >= 300 {
		return nil, elapsed, fmt.Errorf("health endpoint returned status %d", code)
	}
	return &resp, elapsed, nil
}

// Stats fetches the worker account statistics.
func (c *Client) Stats(ctx context.Context, baseURL string, timeout time.Duration) (*StatsResponse, error) {
	var (
		resp StatsResponse
		code int
	)
	err := gout.GET(joinURL(baseURL, "/stats")).
		WithContext(ctx).
		SetTimeout(timeout).
		Debug(c.debug).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return nil, err
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("stats endpoint returned status %d", code)
	}
	return &resp, nil
}

// Connect asks the worker to (re)connect the account session. The worker
// replies with QR material when a fresh pairing is required.
func (c *Client) Connect(ctx context.Context, baseURL string, timeout time.Duration, id string, reconnect bool) (*ConnectResponse, error) {
	var (
		resp ConnectResponse
		code int
	)
	err := gout.POST(joinURL(baseURL, "/accounts/connect")).
		WithContext(ctx).
		SetTimeout(timeout).
		Debug(c.debug).
		SetJSON(gout.H{"id": id, "reconnect": reconnect}).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return nil, err
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("connect endpoint returned status %d", code)
	}
	return &resp, nil
}

// Status fetches the worker's live view of the account session.
func (c *Client) Status(ctx context.Context, baseURL string, timeout time.Duration, id string) (*StatusResponse, error) {
	var (
		resp StatusResponse
		code int
	)
	err := gout.GET(joinURL(baseURL, "/accounts/"+id+"/status")).
		WithContext(ctx).
		SetTimeout(timeout).
		Debug(c.debug).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound {
		return nil, fmt.Errorf("account %s not found on worker", id)
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("status endpoint returned status %d", code)
	}
	return &resp, nil
}

// QR fetches pending pairing material for the account session.
func (c *Client) QR(ctx context.Context, baseURL string, timeout time.Duration, id string) (*QRResponse, error) {
	var (
		resp QRResponse
		code int
	)
	err := gout.GET(joinURL(baseURL, "/accounts/"+id+"/qr")).
		WithContext(ctx).
		SetTimeout(timeout).
		Debug(c.debug).
		BindJSON(&resp).
		Code(&code).
		Do()
	if err != nil {
		return nil, err
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("qr endpoint returned status %d", code)
	}
	return &resp, nil
}

// Disconnect asks the worker to tear down the account session.
func (c *Client) Disconnect(ctx context.Context, baseURL string, timeout time.Duration, id string) error {
	var code int
	err := gout.POST(joinURL(baseURL, "/accounts/"+id+"/disconnect")).
		WithContext(ctx).
		SetTimeout(timeout).
		Debug(c.debug).
		Code(&code).
		Do()
	if err != nil {
		return err
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("disconnect endpoint returned status %d", code)
	}
	return nil
}
