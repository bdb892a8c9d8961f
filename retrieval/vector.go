package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/types"
)

// Embedder 把文本映射为稠密向量。实现见 embedding 包。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorEngine 内存向量检索引擎。
// 索引时为全部片段计算向量，查询时对查询向量做余弦相似度全扫描。
// 语料规模是单机菜谱库，线性扫描够用，不需要 ANN 索引。
type VectorEngine struct {
	mu sync.RWMutex

	embedder  Embedder
	fragments []types.Fragment
	vectors   [][]float64

	logger *zap.Logger
}

// NewVectorEngine 创建向量引擎。
func NewVectorEngine(embedder Embedder, logger *zap.Logger) *VectorEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorEngine{
		embedder: embedder,
		logger:   logger.With(zap.String("component", "vector_engine")),
	}
}

func (e *VectorEngine) Name() string { return "vector" }

// Index 为所有片段批量计算向量。整体替换旧索引。
func (e *VectorEngine) Index(ctx context.Context, fragments []types.Fragment) error {
	texts := make([]string, len(fragments))
	for i, frag := range fragments {
		texts[i] = frag.Text
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d fragments: %w", len(fragments), err)
	}
	if len(vectors) != len(fragments) {
		return fmt.Errorf("embedder returned %d vectors for %d fragments", len(vectors), len(fragments))
	}

	e.mu.Lock()
	e.fragments = fragments
	e.vectors = vectors
	e.mu.Unlock()

	e.logger.Info("vector index built", zap.Int("fragments", len(fragments)))
	return nil
}

// Search 返回与查询向量余弦相似度最高的前 k 个片段。
func (e *VectorEngine) Search(ctx context.Context, query string, k int) ([]types.Fragment, error) {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.fragments) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, 0, len(e.fragments))
	for i, vec := range e.vectors {
		sim := cosineSimilarity(queryVec, vec)
		if sim > 0 {
			hits = append(hits, scored{idx: i, score: sim})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	out := make([]types.Fragment, len(hits))
	for i, h := range hits {
		out[i] = e.fragments[h.idx]
	}
	return out, nil
}

// cosineSimilarity 计算余弦相似度，维度不符或零向量返回 0。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
