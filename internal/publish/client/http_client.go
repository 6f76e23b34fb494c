package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/placehub/placehub/internal/config"
	"github.com/placehub/placehub/internal/observability/metrics"
	publishdomain "github.com/placehub/placehub/internal/publish/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config  config.Config
	Pricing *config.PricingConfigHolder
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type httpGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New builds an HTTP gateway against the partner publishing API.
func New(p Params) publishdomain.Gateway {
	timeout := p.Pricing.Get().GatewayTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpGateway{
		baseURL: p.Config.PublishBaseURL,
		apiKey:  p.Config.PublishAPIKey,
		client:  &http.Client{Timeout: timeout},
		log:     p.Log.Named("publish.gateway"),
		metrics: p.Metrics,
	}
}

type publishPayload struct {
	Site      string `json:"site"`
	Variant   string `json:"variant"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	TargetURL string `json:"target_url,omitempty"`
}

type publishResponse struct {
	PostID string `json:"post_id"`
	URL    string `json:"url"`
}

func (g *httpGateway) Publish(ctx context.Context, req publishdomain.PublishRequest) (*publishdomain.PublishResult, error) {
	payload, err := json.Marshal(publishPayload{
		Site:      req.SiteDomain,
		Variant:   req.Variant,
		Title:     req.Title,
		Body:      req.Body,
		TargetURL: req.TargetURL,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.do(ctx, http.MethodPost, "/v1/posts", bytes.NewReader(payload))
	g.observe(start, err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var body publishResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", publishdomain.ErrGatewayUnavailable, err)
		}
		if body.PostID == "" {
			return nil, publishdomain.ErrGatewayRejected
		}
		return &publishdomain.PublishResult{ExternalPostID: body.PostID, URL: body.URL}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		g.log.Warn("publish rejected",
			zap.String("site", req.SiteDomain),
			zap.Int("status", resp.StatusCode))
		return nil, publishdomain.ErrGatewayRejected
	default:
		return nil, fmt.Errorf("%w: status %d", publishdomain.ErrGatewayUnavailable, resp.StatusCode)
	}
}

func (g *httpGateway) Remove(ctx context.Context, siteDomain, externalPostID string) error {
	path := fmt.Sprintf("/v1/posts/%s?site=%s", url.PathEscape(externalPostID), url.QueryEscape(siteDomain))

	start := time.Now()
	resp, err := g.do(ctx, http.MethodDelete, path, nil)
	g.observe(start, err)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 means the remote post is already gone, which is the end state we
	// wanted anyway.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", publishdomain.ErrGatewayUnavailable, resp.StatusCode)
	}
	return nil
}

func (g *httpGateway) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", publishdomain.ErrGatewayUnavailable, err)
	}
	return resp, nil
}

func (g *httpGateway) observe(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	g.metrics.RecordGatewayCall(result, time.Since(start))
}
