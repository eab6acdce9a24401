package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

// DefaultOverlayURL is the local endpoint of the screen overlay.
const DefaultOverlayURL = "http://localhost:8765/config"

const overlayTimeout = 2 * time.Second

// OverlayUpdate is the body pushed to the overlay.
type OverlayUpdate struct {
	HybridMode bool `json:"hybridMode"`
}

// OverlayPusher pushes every local write to the screen overlay process.
// It does not retry; a missed update is corrected by the next write.
type OverlayPusher struct {
	url        string
	httpClient *http.Client
}

// NewOverlayPusher creates a pusher for the given endpoint.
func NewOverlayPusher(url string) *OverlayPusher {
	if url == "" {
		url = DefaultOverlayURL
	}
	return &OverlayPusher{
		url:        url,
		httpClient: &http.Client{Timeout: overlayTimeout},
	}
}

// Name implements Transport.
func (p *OverlayPusher) Name() string { return "overlay" }

// Publish implements Transport.
func (p *OverlayPusher) Publish(ctx context.Context, c Change) error {
	if c.Key != store.KeyHybridMode {
		return nil
	}

	body, err := json.Marshal(OverlayUpdate{HybridMode: c.New})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("overlay push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("overlay returned status %d", resp.StatusCode)
	}
	return nil
}
