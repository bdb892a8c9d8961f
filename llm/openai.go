package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/cookrag/types"
)

// Config OpenAI 兼容生成接口的配置。
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// RequestsPerSecond 客户端限速，0 表示不限速。
	RequestsPerSecond float64
}

// OpenAIClient 调用 OpenAI 兼容的 /v1/chat/completions 接口。
type OpenAIClient struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIClient 创建生成客户端。
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &OpenAIClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm_client")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete 一次性补全，返回完整回答文本。
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.do(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading completion response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", types.NewError(types.ErrGeneration, "completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream 流式补全。片段通过返回的通道送出，流结束或出错后通道关闭。
func (c *OpenAIClient) Stream(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	resp, err := c.do(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		reader := bufio.NewReader(resp.Body)

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					c.send(ctx, ch, StreamChunk{
						Err: types.NewError(types.ErrGeneration, "stream read failed").
							WithCause(err).
							WithRetryable(true),
					})
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var event chatStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				c.send(ctx, ch, StreamChunk{
					Err: types.NewError(types.ErrGeneration, "malformed stream event").WithCause(err),
				})
				return
			}
			if len(event.Choices) == 0 {
				continue
			}
			if content := event.Choices[0].Delta.Content; content != "" {
				if !c.send(ctx, ch, StreamChunk{Content: content}) {
					return
				}
			}
		}
	}()

	return ch, nil
}

// send 把片段送入通道，调用方取消时返回 false。
func (c *OpenAIClient) send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *OpenAIClient) do(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "chat request failed").
			WithCause(err).
			WithRetryable(true)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("chat API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(msg)))
		return nil, types.NewError(types.ErrGeneration,
			fmt.Sprintf("chat API returned %d: %s", resp.StatusCode, string(msg))).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}
	return resp, nil
}
