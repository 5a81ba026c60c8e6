package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/team-spoved/spoved/internal/model"
)

// Client notifies the automation service that media was uploaded so it can
// generate a ticket from it. Calls are best-effort: failures are logged and
// returned, and callers are expected to carry on.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient returns a client. With an empty baseURL every call is a no-op.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		log: log.With().Str("component", "automation").Logger(),
	}
}

func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

// MediaUploadedEvent is the body of POST /automation/webhook/media-uploaded.
type MediaUploadedEvent struct {
	MediaID    int    `json:"media_id"`
	MediaType  string `json:"media_type"`
	UploadedBy int    `json:"uploaded_by"`
}

// MediaUploaded fires the media-uploaded webhook for m.
func (c *Client) MediaUploaded(ctx context.Context, m *model.Media, uploadedBy int, token string) error {
	if !c.Enabled() {
		return nil
	}
	body, err := json.Marshal(MediaUploadedEvent{
		MediaID:    m.MediaID,
		MediaType:  string(m.MediaType),
		UploadedBy: uploadedBy,
	})
	if err != nil {
		return fmt.Errorf("automation: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/automation/webhook/media-uploaded", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("automation: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Int("media_id", m.MediaID).Msg("webhook request failed")
		return fmt.Errorf("automation: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Int("media_id", m.MediaID).Msg("webhook rejected")
		return fmt.Errorf("automation: status %d for media %d", resp.StatusCode, m.MediaID)
	}
	c.log.Debug().Int("media_id", m.MediaID).Str("media_type", string(m.MediaType)).Msg("webhook delivered")
	return nil
}
