package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

var (
	ErrNotConfigured = errors.New("conversion backend not configured")
	ErrEmptyResult   = errors.New("conversion backend returned empty result")
)

// ConvertRequest 发给转换后端的请求
type ConvertRequest struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Code           string `json:"code"`
}

// ConvertResult 转换后端的响应
type ConvertResult struct {
	ConvertedCode string `json:"converted_code"`
	Model         string `json:"model,omitempty"`
}

// StatusError 后端返回非 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("conversion backend returned %d: %s", e.StatusCode, e.Body)
}

// Client 转换后端 HTTP 客户端
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Convert 调用后端完成一次转换，不做重试
func (c *Client) Convert(ctx context.Context, req *ConvertRequest) (*ConvertResult, error) {
	if c.endpoint == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call conversion backend: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read conversion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(payload)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	var result ConvertResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode conversion response: %w", err)
	}
	if result.ConvertedCode == "" {
		return nil, ErrEmptyResult
	}

	return &result, nil
}
