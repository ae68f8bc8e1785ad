package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/Yourdaylight/stock-datasource-sub003/internal/contracts"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/config"
	"github.com/Yourdaylight/stock-datasource-sub003/pkg/logger"
)

// NarrativeClient calls the external text-analysis service over HTTP.
// Requests are rate limited so a batch over the whole pool cannot
// hammer the service.
type NarrativeClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewNarrativeClient creates a client from config. Returns nil when no
// base URL is configured; callers treat a nil analyzer as "narrative
// analysis disabled".
func NewNarrativeClient(cfg config.NarrativeConfig, log *logger.Logger) *NarrativeClient {
	if cfg.BaseURL == "" {
		return nil
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1
	}
	return &NarrativeClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		log:     log.WithField("component", "narrative"),
	}
}

// Analyze submits one narrative request and decodes the structured
// result. Blocks on the rate limiter before sending.
func (c *NarrativeClient) Analyze(ctx context.Context, req contracts.NarrativeRequest) (*contracts.NarrativeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal narrative request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build narrative request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call narrative service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("narrative service returned %d: %s", resp.StatusCode, msg)
	}

	var result contracts.NarrativeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode narrative result: %w", err)
	}
	result.Code = req.Code

	return &result, nil
}
