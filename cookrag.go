// Package cookrag 提供从配置组装完整问答流水线的入口。
//
// Usage:
//
//	import "github.com/BaSui01/cookrag"
//
//	cfg, _ := config.NewLoader().WithConfigPath("config.yaml").Load()
//	p, err := cookrag.New(cfg, logger)
//	if err != nil { ... }
//	if err := p.LoadAndIndex(ctx); err != nil { ... }
//	answer, err := p.Ask(ctx, sessionID, "红烧肉怎么做")
package cookrag

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/cache"
	"github.com/BaSui01/cookrag/config"
	"github.com/BaSui01/cookrag/embedding"
	"github.com/BaSui01/cookrag/generate"
	"github.com/BaSui01/cookrag/internal/metrics"
	"github.com/BaSui01/cookrag/llm"
	"github.com/BaSui01/cookrag/pipeline"
	"github.com/BaSui01/cookrag/retrieval"
	"github.com/BaSui01/cookrag/session"
	"github.com/BaSui01/cookrag/store"
)

// Pipeline 组装好的问答流水线及其全部组件。
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger

	store     *store.FragmentStore
	retriever *retrieval.HybridRetriever
	cache     *cache.ResponseCache
	sessions  *session.Store
	generator *generate.Generator
	collector *metrics.Collector
	orch      *pipeline.Orchestrator

	redisClient *redis.Client
}

// New 按配置组装流水线。组件创建不触网；
// 知识库加载和索引构建由 LoadAndIndex 完成。
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{cfg: cfg, logger: logger}

	source := store.NewMarkdownSource(cfg.Store.DataPath, logger)
	p.store = store.NewFragmentStore(source, logger)

	embedder, err := p.buildEmbedder()
	if err != nil {
		return nil, err
	}

	vector := retrieval.NewVectorEngine(embedder, logger)
	lexical := retrieval.NewBM25Engine(cfg.Retrieval.BM25K1, cfg.Retrieval.BM25B, logger)
	p.retriever = retrieval.NewHybridRetriever(retrieval.Config{
		RRFK:            cfg.Retrieval.RRFK,
		CandidateCount:  cfg.Retrieval.CandidateCount,
		OverfetchFactor: cfg.Retrieval.OverfetchFactor,
	}, vector, lexical, logger)

	p.cache = cache.NewResponseCache(cfg.Cache.MaxSize, cfg.Cache.TTL, logger)
	p.sessions = session.NewStore(
		cfg.Session.MaxSessions,
		cfg.Session.MaxHistory,
		cfg.Session.TTL,
		cfg.Session.ContextWindow,
		logger,
	)

	llmClient := llm.NewOpenAIClient(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, logger)
	budget := llm.NewTokenBudget(cfg.LLM.ContextTokenBudget, logger)
	p.generator = generate.NewGenerator(llmClient, budget, logger)

	p.collector = metrics.NewCollector("cookrag", nil, logger)

	p.orch = pipeline.NewOrchestrator(
		p.store,
		p.retriever,
		p.cache,
		p.sessions,
		p.generator,
		cfg.Retrieval.TopK,
		p.collector,
		logger,
	)
	return p, nil
}

// buildEmbedder 按配置选择嵌入提供者，可选 Redis 缓存包装。
func (p *Pipeline) buildEmbedder() (embedding.Provider, error) {
	cfg := p.cfg.Embedding

	var provider embedding.Provider
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedding provider %q requires an API key", cfg.Provider)
		}
		provider = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case "local", "":
		provider = embedding.NewLocalProvider(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	if cfg.Cache.Enabled {
		p.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		provider = embedding.NewCachedProvider(provider, p.redisClient, cfg.Cache.TTL, p.logger)
	}
	return provider, nil
}

// LoadAndIndex 加载知识库并构建两个检索引擎的索引。
func (p *Pipeline) LoadAndIndex(ctx context.Context) error {
	docs, err := p.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}

	fragments := p.store.Fragments()
	if err := p.retriever.Index(ctx, fragments); err != nil {
		return fmt.Errorf("building retrieval indexes: %w", err)
	}

	p.logger.Info("knowledge base ready",
		zap.Int("documents", len(docs)),
		zap.Int("fragments", len(fragments)))
	return nil
}

// Ask 回答一个问题。
func (p *Pipeline) Ask(ctx context.Context, sessionID, question string) (pipeline.Answer, error) {
	return p.orch.Ask(ctx, sessionID, question)
}

// AskStream 流式回答。
func (p *Pipeline) AskStream(ctx context.Context, sessionID, question string) (<-chan llm.StreamChunk, error) {
	return p.orch.AskStream(ctx, sessionID, question)
}

// Close 释放外部连接。
func (p *Pipeline) Close() error {
	if p.redisClient != nil {
		return p.redisClient.Close()
	}
	return nil
}

// Store 返回知识库。
func (p *Pipeline) Store() *store.FragmentStore { return p.store }

// Cache 返回回答缓存。
func (p *Pipeline) Cache() *cache.ResponseCache { return p.cache }

// Sessions 返回会话存储。
func (p *Pipeline) Sessions() *session.Store { return p.sessions }

// Orchestrator 返回问答编排器。
func (p *Pipeline) Orchestrator() *pipeline.Orchestrator { return p.orch }

// Collector 返回指标收集器。
func (p *Pipeline) Collector() *metrics.Collector { return p.collector }
