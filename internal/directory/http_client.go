package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campuslink/comms-backend/internal/errs"
)

// HTTPDirectory talks to the identity service over its internal REST API.
type HTTPDirectory struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPDirectory creates a directory client. baseURL is expected to be
// like "http://identity-service:8080/api"; token is the service-to-service
// bearer credential.
func NewHTTPDirectory(baseURL, token string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type listUsersResponse struct {
	Users []User `json:"users"`
}

func (c *HTTPDirectory) ListUsers(ctx context.Context, excluding uint) ([]User, error) {
	url := fmt.Sprintf("%s/users?excluding=%d", c.baseURL, excluding)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build directory request: %v", errs.ErrDependency, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: call directory: %v", errs.ErrDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: directory returned status %d", errs.ErrDependency, resp.StatusCode)
	}

	var payload listUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode directory response: %v", errs.ErrDependency, err)
	}

	return payload.Users, nil
}
