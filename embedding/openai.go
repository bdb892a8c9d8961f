package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/cookrag/types"
)

// OpenAIConfig OpenAI 兼容接口的配置。
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxBatch   int
	Timeout    time.Duration
}

// OpenAIProvider 调用 OpenAI 兼容的 /v1/embeddings 接口。
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider 创建 OpenAI 兼容向量化提供者。
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 100
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *OpenAIProvider) Name() string    { return "openai-embedding" }
func (p *OpenAIProvider) Dimensions() int { return p.cfg.Dimensions }

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 向量化单条文本。
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化，超过 MaxBatch 的输入自动分批。
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += p.cfg.MaxBatch {
		end := start + p.cfg.MaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (p *OpenAIProvider) embedChunk(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(embedRequest{Input: texts, Model: p.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrEmbedding, "embedding request failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, types.NewError(types.ErrEmbedding,
			fmt.Sprintf("embedding API returned %d: %s", resp.StatusCode, string(respBody))).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, types.NewError(types.ErrEmbedding,
			fmt.Sprintf("embedding API returned %d vectors for %d inputs", len(parsed.Data), len(texts)))
	}

	// 按 index 归位，接口不保证返回顺序
	vectors := make([][]float64, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, types.NewError(types.ErrEmbedding,
				fmt.Sprintf("embedding API returned out-of-range index %d", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
