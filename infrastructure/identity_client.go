package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"splitpay/domain"
	"splitpay/domain/interfaces"
)

// IdentityClient verifies platform credentials against the external identity
// provider. A 401 from the provider means the credential is bad; any other
// failure is a transport problem and stays distinguishable from rejection.
type IdentityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIdentityClient creates a new identity provider client
func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type identityResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Verify checks the credential with the identity provider and returns the
// verified identity
func (c *IdentityClient) Verify(ctx context.Context, credential string) (interfaces.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/me", nil)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return interfaces.Identity{}, fmt.Errorf("identity provider call failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return interfaces.Identity{}, domain.ErrInvalidCredential
	case resp.StatusCode != http.StatusOK:
		return interfaces.Identity{}, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var body identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return interfaces.Identity{}, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if body.ID == "" {
		return interfaces.Identity{}, fmt.Errorf("identity provider returned empty identity")
	}

	return interfaces.Identity{ExternalID: body.ID, Username: body.Username}, nil
}
