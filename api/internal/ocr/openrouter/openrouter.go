package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"img2tex/api/internal/ocr"
	"img2tex/api/internal/ocr/types"
)

const (
	DefaultURL     = "https://openrouter.ai/api/v1/chat/completions"
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 8 << 20
)

type Options struct {
	URL     string
	Referer string // HTTP-Referer, identifies the app on openrouter.ai
	Title   string // X-Title
	Timeout time.Duration
}

type Engine struct {
	APIKey  string
	URL     string
	Referer string
	Title   string
	httpc   *http.Client
}

func New(key string, opt Options) *Engine {
	if opt.URL == "" {
		opt.URL = DefaultURL
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opt.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	return &Engine{
		APIKey:  key,
		URL:     opt.URL,
		Referer: opt.Referer,
		Title:   opt.Title,
		httpc: &http.Client{
			Timeout:   opt.Timeout,
			Transport: tr,
		},
	}
}

// WithHTTPClient overrides the internal HTTP client (tests, tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string { return "openrouter" }

// Payload builds the chat/completions body: the system prompt, then one user
// message whose only part is the caller's image reference.
func Payload(in types.ExtractRequest) map[string]any {
	return map[string]any{
		"model":       in.Model,
		"temperature": in.Temperature,
		"messages": []any{
			map[string]any{"role": "system", "content": in.SystemPrompt},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": in.Image}},
				},
			},
		},
	}
}

func (e *Engine) Extract(ctx context.Context, in types.ExtractRequest) (types.ExtractResponse, error) {
	if e.APIKey == "" {
		return types.ExtractResponse{}, fmt.Errorf("OPENROUTER_API_KEY is empty")
	}

	payload, err := json.Marshal(Payload(in))
	if err != nil {
		return types.ExtractResponse{}, fmt.Errorf("openrouter: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return types.ExtractResponse{}, fmt.Errorf("openrouter: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if e.Referer != "" {
		req.Header.Set("HTTP-Referer", e.Referer)
	}
	if e.Title != "" {
		req.Header.Set("X-Title", e.Title)
	}

	resp, err := e.httpc.Do(req)
	if err != nil {
		return types.ExtractResponse{}, &ocr.TransportError{Provider: e.Name(), Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return types.ExtractResponse{}, &ocr.TransportError{Provider: e.Name(), Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.ExtractResponse{}, &ocr.UpstreamError{
			Provider:   e.Name(),
			StatusCode: resp.StatusCode,
			Status:     reasonPhrase(resp),
			Message:    errorMessage(raw),
			Body:       truncateBytes(raw, 1024),
		}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.ExtractResponse{}, fmt.Errorf("openrouter: bad JSON: %w; body=%s", err, truncateBytes(raw, 256))
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil {
		return types.ExtractResponse{Empty: true}, nil
	}
	return types.ExtractResponse{Text: *out.Choices[0].Message.Content}, nil
}

// errorMessage pulls error.message out of an OpenAI-style error body.
func errorMessage(raw []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return strings.TrimSpace(env.Error.Message)
}

// reasonPhrase turns "429 Too Many Requests" into "Too Many Requests".
func reasonPhrase(resp *http.Response) string {
	s := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if s == "" {
		s = http.StatusText(resp.StatusCode)
	}
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
