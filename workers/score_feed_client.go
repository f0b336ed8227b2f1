package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"battle-engine/models"
)

// ScoreFeedClient reads live fantasy points from the stats service.
type ScoreFeedClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewScoreFeedClient(baseURL, token string) *ScoreFeedClient {
	return &ScoreFeedClient{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type playerPointsResponse struct {
	PlayerID string  `json:"player_id"`
	Points   float64 `json:"points"`
}

// GetPlayerPoints calls GET {base}/players/{id}/points.
func (c *ScoreFeedClient) GetPlayerPoints(ctx context.Context, playerID string) (float64, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid score feed URL %q: %w", c.BaseURL, err)
	}
	endpoint := base.JoinPath("players", playerID, "points")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("X-Service-Token", c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call score feed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("score feed returned status %d for %s: %s", resp.StatusCode, playerID, string(body))
	}

	var out playerPointsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode score feed response: %w", err)
	}
	return out.Points, nil
}

// ProjectionFeed serves each pool player's projection, or a value set with
// SetPoints. Used when no score feed is configured.
type ProjectionFeed struct {
	mu     sync.RWMutex
	points map[string]float64
}

func NewProjectionFeed(pool []models.PoolPlayer) *ProjectionFeed {
	f := &ProjectionFeed{points: make(map[string]float64, len(pool))}
	for _, p := range pool {
		f.points[p.PlayerID] = p.Projected
	}
	return f
}

func (f *ProjectionFeed) SetPoints(playerID string, points float64) {
	f.mu.Lock()
	f.points[playerID] = points
	f.mu.Unlock()
}

func (f *ProjectionFeed) GetPlayerPoints(_ context.Context, playerID string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pts, ok := f.points[playerID]
	if !ok {
		return 0, fmt.Errorf("no points for player %s", playerID)
	}
	return pts, nil
}
