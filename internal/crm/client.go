package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/truecosmic/calbook-api/pkg/config"
)

// Syncer pushes booking details onto a CRM contact. Implementations are
// best-effort: a failed sync never blocks a booking.
type Syncer interface {
	SyncBooking(ctx context.Context, visitorEmail, bookingTimeLocal, hostName string) error
}

// Client talks to the contact API. A zero-value base URL disables sync.
type Client struct {
	baseURL  string
	apiKey   string
	botID    string
	platform string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(cfg config.CRMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	platform := cfg.Platform
	if platform == "" {
		platform = "website"
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		botID:    cfg.BotID,
		platform: platform,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// Enabled reports whether the client has enough configuration to sync.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.apiKey != "" && c.botID != ""
}

type contact struct {
	ID    string `json:"id"`
	AltID string `json:"_id"`
	UUID  string `json:"uuid"`
}

func (c *contact) identifier() string {
	for _, id := range []string{c.ID, c.AltID, c.UUID} {
		if strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

type searchResponse struct {
	Contacts []contact `json:"contacts"`
	contact
}

// SyncBooking looks up the contact by email and patches its booking
// attributes. Missing contacts are not an error.
func (c *Client) SyncBooking(ctx context.Context, visitorEmail, bookingTimeLocal, hostName string) error {
	if !c.Enabled() {
		c.logger.Debug("crm sync skipped, client not configured")
		return nil
	}

	id, err := c.findContactByEmail(ctx, visitorEmail)
	if err != nil {
		return err
	}
	if id == "" {
		c.logger.Info("crm contact not found", zap.String("email", visitorEmail))
		return nil
	}

	return c.updateAttributes(ctx, id, map[string]any{
		"booking_time":       bookingTimeLocal,
		"demo_session_coach": hostName,
	})
}

func (c *Client) findContactByEmail(ctx context.Context, email string) (string, error) {
	q := url.Values{}
	q.Set("botId", c.botID)
	q.Set("platform", c.platform)
	q.Set("email", email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/contacts/search?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("crm search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("crm search: unexpected status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("crm search: decode response: %w", err)
	}
	if len(parsed.Contacts) > 0 {
		return parsed.Contacts[0].identifier(), nil
	}
	return parsed.identifier(), nil
}

func (c *Client) updateAttributes(ctx context.Context, contactID string, attrs map[string]any) error {
	body, err := json.Marshal(map[string]any{
		"botId":      c.botID,
		"platform":   c.platform,
		"attributes": attrs,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/api/v2/contacts/"+url.PathEscape(contactID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("crm update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("crm update: unexpected status %d", resp.StatusCode)
	}
	c.logger.Info("crm contact updated", zap.String("contact_id", contactID))
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
