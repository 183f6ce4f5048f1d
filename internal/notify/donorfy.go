package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultDonorfyURL is the Donorfy REST endpoint
const DefaultDonorfyURL = "https://data.donorfy.com/api/v1"

// DonorfyCredentials are the per-company Donorfy keys
type DonorfyCredentials struct {
	APIKey    string
	AccessKey string
}

// Configured reports whether both keys are present
func (c DonorfyCredentials) Configured() bool {
	return c.APIKey != "" && c.AccessKey != ""
}

// Activity is a constituent activity recorded in Donorfy
type Activity struct {
	Email        string  `json:"EmailAddress"`
	FirstName    string  `json:"FirstName,omitempty"`
	LastName     string  `json:"LastName,omitempty"`
	ActivityType string  `json:"ActivityType"`
	ActivityDate string  `json:"ActivityDate"`
	Campaign     string  `json:"Campaign,omitempty"`
	Amount       float64 `json:"Number1,omitempty"`
	Quantity     int     `json:"Number2,omitempty"`
	Notes        string  `json:"Notes,omitempty"`
}

// Activity types recorded by the booking flow
const (
	ActivityEventBooked = "Event Booked"
	ActivityDonation    = "Donation"
)

// CRMClient records booking activity in the company CRM
type CRMClient interface {
	RecordActivity(ctx context.Context, creds DonorfyCredentials, a Activity) error
}

// HTTPDonorfyClient implements CRMClient against the Donorfy REST API
type HTTPDonorfyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDonorfyClient creates a new Donorfy client
func NewHTTPDonorfyClient(baseURL string, timeout time.Duration) *HTTPDonorfyClient {
	if baseURL == "" {
		baseURL = DefaultDonorfyURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDonorfyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RecordActivity posts an activity for the constituent with the given email
func (c *HTTPDonorfyClient) RecordActivity(ctx context.Context, creds DonorfyCredentials, a Activity) error {
	if !creds.Configured() {
		return nil
	}

	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}

	url := fmt.Sprintf("%s/%s/activities", c.baseURL, creds.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("nosht", creds.AccessKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to record donorfy activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("donorfy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// NoOpCRMClient discards activities
type NoOpCRMClient struct{}

// NewNoOpCRMClient creates a new no-op CRM client
func NewNoOpCRMClient() *NoOpCRMClient {
	return &NoOpCRMClient{}
}

// RecordActivity does nothing
func (c *NoOpCRMClient) RecordActivity(ctx context.Context, creds DonorfyCredentials, a Activity) error {
	return nil
}
