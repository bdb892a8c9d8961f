package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedProvider 用 Redis 缓存包装另一个提供者。
// 缓存键由提供者名、模型维度和文本哈希派生，
// Redis 不可用时降级为直接调用底层提供者，只记日志不报错。
type CachedProvider struct {
	inner  Provider
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider 创建带 Redis 缓存的向量化提供者。
func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		inner:  inner,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "embedding_cache")),
	}
}

func (p *CachedProvider) Name() string    { return p.inner.Name() }
func (p *CachedProvider) Dimensions() int { return p.inner.Dimensions() }

// Embed 先查缓存，未命中再调底层提供者并写回。
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := p.cacheKey(text)

	if vec, ok := p.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch 逐条查缓存，只把未命中的文本发给底层提供者批量计算。
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if vec, ok := p.lookup(ctx, p.cacheKey(text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := p.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		i := missingIdx[j]
		out[i] = vec
		p.store(ctx, p.cacheKey(texts[i]), vec)
	}

	p.logger.Debug("embedding batch computed",
		zap.Int("total", len(texts)),
		zap.Int("cache_hits", len(texts)-len(missing)))

	return out, nil
}

func (p *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "cookrag:embedding:" + p.inner.Name() + ":" + hex.EncodeToString(sum[:16])
}

func (p *CachedProvider) lookup(ctx context.Context, key string) ([]float64, bool) {
	if p.redis == nil {
		return nil, false
	}
	data, err := p.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("embedding cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		p.logger.Warn("corrupt embedding cache entry dropped", zap.String("key", key))
		p.redis.Del(ctx, key)
		return nil, false
	}
	return vec, true
}

func (p *CachedProvider) store(ctx context.Context, key string, vec []float64) {
	if p.redis == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := p.redis.Set(ctx, key, data, p.ttl).Err(); err != nil {
		p.logger.Warn("embedding cache set failed", zap.Error(err))
	}
}
