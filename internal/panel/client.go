// Package panel provides the client for the external provisioning panel.
//
// The panel is a remote service with create/delete/power operations that
// can fail or time out; any non-success response is surfaced as
// ErrProvisioning and the caller decides what to do with the record.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shadenhost/shaden/internal/model"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second
)

// ErrProvisioning wraps any non-success panel response.
var ErrProvisioning = errors.New("provisioning failed")

// PowerSignal is a power action for a provisioned instance.
type PowerSignal string

const (
	PowerStart   PowerSignal = "start"
	PowerStop    PowerSignal = "stop"
	PowerRestart PowerSignal = "restart"
	PowerKill    PowerSignal = "kill"
)

// IsValid reports whether the signal is one the panel accepts.
func (s PowerSignal) IsValid() bool {
	switch s {
	case PowerStart, PowerStop, PowerRestart, PowerKill:
		return true
	}
	return false
}

// Client talks to the panel's application API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates a panel client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		http:    newHTTPClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// newHTTPClient builds an HTTP client with conservative timeouts that does
// not follow redirects.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// createServerRequest is the panel's server creation payload.
type createServerRequest struct {
	Name          string         `json:"name"`
	ExternalID    string         `json:"external_id"`
	Limits        serverLimits   `json:"limits"`
	FeatureLimits featureLimits  `json:"feature_limits"`
	Allocation    map[string]int `json:"allocation"`
}

type serverLimits struct {
	Memory int64 `json:"memory"`
	Swap   int64 `json:"swap"`
	Disk   int64 `json:"disk"`
	IO     int64 `json:"io"`
	CPU    int64 `json:"cpu"`
}

type featureLimits struct {
	Databases   int64 `json:"databases"`
	Allocations int64 `json:"allocations"`
	Backups     int64 `json:"backups"`
}

type serverAttributes struct {
	ID         int64  `json:"id"`
	UUID       string `json:"uuid"`
	Identifier string `json:"identifier"`
	Suspended  bool   `json:"suspended"`
}

type serverResponse struct {
	Attributes serverAttributes `json:"attributes"`
}

// CreateServer asks the panel to provision an instance for server and
// returns the panel-assigned id.
func (c *Client) CreateServer(ctx context.Context, server *model.Server) (int64, error) {
	payload := createServerRequest{
		Name:       server.Name,
		ExternalID: server.ID.String(),
		Limits: serverLimits{
			Memory: server.Resources.RAM,
			Swap:   0,
			Disk:   server.Resources.Disk,
			IO:     500,
			CPU:    server.Resources.CPU,
		},
		FeatureLimits: featureLimits{
			Databases:   server.Resources.Databases,
			Allocations: server.Resources.Allocations,
			Backups:     server.Resources.Backups,
		},
		Allocation: map[string]int{"default": 1},
	}

	var resp serverResponse
	if err := c.do(ctx, http.MethodPost, "/api/application/servers", payload, &resp); err != nil {
		return 0, err
	}
	return resp.Attributes.ID, nil
}

// DeleteServer removes a provisioned instance. Deleting an instance the
// panel no longer knows is treated as success so cleanup jobs stay
// idempotent.
func (c *Client) DeleteServer(ctx context.Context, externalID int64) error {
	path := fmt.Sprintf("/api/application/servers/%d", externalID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// Power sends a power signal to a provisioned instance.
func (c *Client) Power(ctx context.Context, externalID int64, signal PowerSignal) error {
	path := fmt.Sprintf("/api/application/servers/%d/power", externalID)
	payload := map[string]string{"signal": string(signal)}
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// statusError carries the panel's HTTP status for classification.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: panel returned HTTP %d: %s", ErrProvisioning, e.status, e.body)
}

func (e *statusError) Unwrap() error { return ErrProvisioning }

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// do executes one panel request, decoding the response into out when it is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal panel request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create panel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep enough body for a useful error, drain the rest for reuse.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode panel response: %w", err)
	}
	return nil
}
