package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vibejudge/vibejudge/pkg/metrics"
)

// HTTPConverseClient talks to a Bedrock-style converse endpoint:
// POST {endpoint}/model/{model_id}/converse with a JSON body.
type HTTPConverseClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPConverseClient creates the production Converse adapter. The timeout
// is a transport ceiling; callers still bound individual calls via context.
func NewHTTPConverseClient(endpoint, apiKey string, timeout time.Duration) *HTTPConverseClient {
	return &HTTPConverseClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type converseWireRequest struct {
	System    string          `json:"system,omitempty"`
	Messages  []Message       `json:"messages"`
	Inference InferenceConfig `json:"inference_config"`
}

type converseWireResponse struct {
	Content     string `json:"content"`
	StopReason  string `json:"stop_reason"`
	ServiceTier string `json:"service_tier"`
	Usage       struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Converse implements ConverseClient.
func (c *HTTPConverseClient) Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error) {
	body, err := json.Marshal(converseWireRequest{
		System:    req.System,
		Messages:  req.Messages,
		Inference: req.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("encode converse request: %w", err)
	}

	u := fmt.Sprintf("%s/model/%s/converse", c.endpoint, url.PathEscape(req.ModelID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create converse request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("converse %s: %w", req.ModelID, err)
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	metrics.ConverseDuration.WithLabelValues(req.ModelID).Observe(latency.Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read converse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("converse %s: HTTP %d: %s", req.ModelID, resp.StatusCode, truncateBody(raw))
	}

	var wire converseWireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode converse response: %w", err)
	}

	return &ConverseResponse{
		Content:     wire.Content,
		Usage:       Usage{InputTokens: wire.Usage.InputTokens, OutputTokens: wire.Usage.OutputTokens},
		LatencyMS:   latency.Milliseconds(),
		StopReason:  wire.StopReason,
		ServiceTier: wire.ServiceTier,
	}, nil
}

// Close implements ConverseClient.
func (c *HTTPConverseClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func truncateBody(raw []byte) string {
	const max = 512
	if len(raw) > max {
		return string(raw[:max]) + "…"
	}
	return string(raw)
}
