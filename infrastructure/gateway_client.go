package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"splitpay/domain"
	"splitpay/domain/interfaces"
	"splitpay/observability"
)

// GatewayClient is the HTTP client for the external payment gateway. Both
// operations are idempotent on the gateway side keyed by transfer ref, so a
// timed-out call can always be retried.
//
// Status mapping: 2xx carries a JSON decision body, 4xx is a definitive
// rejection, everything else (5xx, transport errors, timeouts) is "don't
// know" and returned as an error.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewGatewayClient creates a new payment gateway client
func NewGatewayClient(baseURL string, metrics *observability.Metrics) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		metrics: metrics,
	}
}

type gatewayDecision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Approve asks the network to approve the transfer identified by transferRef
func (c *GatewayClient) Approve(ctx context.Context, transferRef string) (interfaces.GatewayOutcome, error) {
	body := map[string]string{"transfer_ref": transferRef}
	return c.post(ctx, "approve", "/v1/transfers/approve", body)
}

// Complete notifies the network that the transfer completed with the given
// external transaction id
func (c *GatewayClient) Complete(ctx context.Context, transferRef, externalTxID string) (interfaces.GatewayOutcome, error) {
	body := map[string]string{
		"transfer_ref":   transferRef,
		"external_tx_id": externalTxID,
	}
	return c.post(ctx, "complete", "/v1/transfers/complete", body)
}

func (c *GatewayClient) post(ctx context.Context, operation, path string, body any) (interfaces.GatewayOutcome, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return interfaces.GatewayOutcome{}, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return interfaces.GatewayOutcome{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.countRequest(operation, "unavailable")
		return interfaces.GatewayOutcome{}, fmt.Errorf("gateway %s call failed: %w", operation, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var decision gatewayDecision
		if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
			c.countRequest(operation, "unavailable")
			return interfaces.GatewayOutcome{}, fmt.Errorf("failed to decode gateway %s response: %w", operation, err)
		}
		result := "approved"
		if !decision.Approved {
			result = "rejected"
		}
		c.countRequest(operation, result)
		return interfaces.GatewayOutcome{Approved: decision.Approved, Reason: decision.Reason}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// A definitive no from the network, not a transport problem.
		var decision gatewayDecision
		_ = json.NewDecoder(resp.Body).Decode(&decision)
		reason := decision.Reason
		if reason == "" {
			reason = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		c.countRequest(operation, "rejected")
		log.WithFields(log.Fields{
			"operation": operation,
			"status":    resp.StatusCode,
			"reason":    reason,
		}).Warn("Gateway rejected transfer")
		return interfaces.GatewayOutcome{Approved: false, Reason: reason}, nil

	default:
		c.countRequest(operation, "unavailable")
		return interfaces.GatewayOutcome{}, fmt.Errorf("gateway %s returned status %d: %w", operation, resp.StatusCode, domain.ErrGatewayUnavailable)
	}
}

func (c *GatewayClient) countRequest(operation, result string) {
	if c.metrics != nil {
		c.metrics.GatewayRequests.WithLabelValues(operation, result).Inc()
	}
}
