package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

type OpenAIClient struct {
	apiKey         string
	baseURL        string
	model          string
	imageModel     string
	requestTimeout time.Duration
	maxRetries     int
	retryBase      time.Duration
	http           *http.Client
}

func NewOpenAIClient(apiKey, baseURL, model, imageModel string, requestTimeout time.Duration, maxRetries int, retryBase time.Duration) *OpenAIClient {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxRetries > 5 {
		maxRetries = 5
	}
	if retryBase <= 0 {
		retryBase = 400 * time.Millisecond
	}

	return &OpenAIClient{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		model:          model,
		imageModel:     imageModel,
		requestTimeout: requestTimeout,
		maxRetries:     maxRetries,
		retryBase:      retryBase,
		http: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// GenerateText runs one chat completion. Transient failures (network errors,
// 429, 5xx) are retried up to maxRetries with jittered exponential backoff.
// An empty completion returns ErrEmptyResponse without retrying.
func (c *OpenAIClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("OPENAI_API_KEY is required for openai provider")
	}

	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": 0.7,
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	var content string
	err = c.withRetries(ctx, func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/chat/completions"), bytes.NewReader(jsonBody))
		if err != nil {
			return false, err
		}
		c.setHeaders(req)

		value, retryable, err := c.completeOnce(req)
		if err != nil {
			return retryable, err
		}
		content = value
		return false, nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// GenerateImage runs one image generation and returns the first image URL.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("OPENAI_API_KEY is required for openai provider")
	}

	requestBody := map[string]any{
		"model":  c.imageModel,
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	var url string
	err = c.withRetries(ctx, func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/images/generations"), bytes.NewReader(jsonBody))
		if err != nil {
			return false, err
		}
		c.setHeaders(req)

		value, retryable, err := c.imageOnce(req)
		if err != nil {
			return retryable, err
		}
		url = value
		return false, nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (c *OpenAIClient) withRetries(ctx context.Context, attempt func(ctx context.Context) (retryable bool, err error)) error {
	ctx, cancel := contextWithDefaultTimeout(ctx, c.requestTimeout)
	defer cancel()

	var lastErr error
	for try := 0; try <= c.maxRetries; try++ {
		retryable, err := attempt(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || try >= c.maxRetries {
			break
		}

		wait := retryDelay(c.retryBase, try)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (c *OpenAIClient) endpoint(path string) string {
	if strings.HasSuffix(c.baseURL, "/v1") {
		return c.baseURL + path
	}
	return c.baseURL + "/v1" + path
}

func (c *OpenAIClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (c *OpenAIClient) completeOnce(req *http.Request) (string, bool, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		return "", true, err
	}
	defer resp.Body.Close()

	if retryable, err := classifyStatus(resp); err != nil {
		return "", retryable, err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", true, err
	}
	if len(out.Choices) == 0 {
		return "", false, ErrEmptyResponse
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", false, ErrEmptyResponse
	}
	return content, false, nil
}

func (c *OpenAIClient) imageOnce(req *http.Request) (string, bool, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		return "", true, err
	}
	defer resp.Body.Close()

	if retryable, err := classifyStatus(resp); err != nil {
		return "", retryable, err
	}

	var out struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", true, err
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0].URL) == "" {
		return "", false, ErrEmptyResponse
	}
	return strings.TrimSpace(out.Data[0].URL), false, nil
}

func classifyStatus(resp *http.Response) (bool, error) {
	if resp.StatusCode < 400 {
		return false, nil
	}

	bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	message := strings.TrimSpace(string(bodySnippet))
	if message == "" {
		message = fmt.Sprintf("status %d", resp.StatusCode)
	}
	err := fmt.Errorf("openai provider error: status=%d body=%s", resp.StatusCode, message)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return true, err
	}
	return false, err
}

func contextWithDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), timeout)
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 400 * time.Millisecond
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := base * time.Duration(1<<attempt)
	jitterScale := 0.8 + (rand.Float64() * 0.4)
	jittered := time.Duration(float64(delay) * jitterScale)
	if jittered < 50*time.Millisecond {
		return 50 * time.Millisecond
	}
	return jittered
}
