// Package webhook notifies an external consumer (dashboard, plotting
// service) about completed batch inversions.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/Ce1ectric/groundmeas"
)

// Client posts completed inversion outcomes as JSON.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a webhook client. An empty URL disables sending.
func NewClient(url string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
	}
}

// Enabled reports whether a target URL is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

// Payload is the webhook body for one completed inversion.
type Payload struct {
	JobID         string                      `json:"job_id"`
	MeasurementID int64                       `json:"measurement_id"`
	Time          string                      `json:"time"`
	Misfit        float64                     `json:"misfit"`
	Result        *groundmeas.InversionResult `json:"result,omitempty"`
	Error         string                      `json:"error,omitempty"`
}

// Send posts the payload. No-op when the client is disabled.
func (c *Client) Send(payload Payload) error {
	if !c.Enabled() {
		return nil
	}
	payload.Time = time.Now().Format(time.RFC3339Nano)
	payload.Misfit = sanitizeFloat(payload.Misfit)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	resp, err := c.httpClient.Post(c.url, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("webhook sent - job: %s, measurement: %d, status: %d",
		payload.JobID, payload.MeasurementID, resp.StatusCode)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}

// sanitizeFloat cleans float64 values for JSON compatibility.
func sanitizeFloat(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
