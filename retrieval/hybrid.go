package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/cookrag/types"
)

// Config 混合检索配置。
type Config struct {
	// RRFK 是 RRF 平滑常数 k，得分为 1/(k+rank)。
	RRFK int `json:"rrf_k"`
	// CandidateCount 每个引擎的召回上限，与最终 limit 解耦。
	CandidateCount int `json:"candidate_count"`
	// OverfetchFactor 过滤检索的超取倍数，补偿过滤损耗。
	OverfetchFactor int `json:"overfetch_factor"`
}

// DefaultConfig 返回默认混合检索配置。
func DefaultConfig() Config {
	return Config{
		RRFK:            60,
		CandidateCount:  20,
		OverfetchFactor: 3,
	}
}

// Filters 过滤检索的元数据约束：键到允许值集合的映射。
// 单个值做等值匹配，多个值做成员匹配；缺少该键的片段一律不匹配。
type Filters map[string][]string

// matches 判断片段是否满足全部过滤条件。
func (f Filters) matches(frag types.Fragment) bool {
	for key, allowed := range f {
		v, ok := frag.Metadata.Field(key)
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if v == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HybridRetriever 双引擎混合检索器。
// 向量和词法引擎并发召回，RRF 融合，排名单位是片段内容哈希。
type HybridRetriever struct {
	config  Config
	vector  Engine
	lexical Engine
	logger  *zap.Logger
}

// NewHybridRetriever 创建混合检索器。
func NewHybridRetriever(config Config, vector, lexical Engine, logger *zap.Logger) *HybridRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridRetriever{
		config:  config,
		vector:  vector,
		lexical: lexical,
		logger:  logger.With(zap.String("component", "hybrid_retriever")),
	}
}

// Index 把片段索引到两个引擎。
func (r *HybridRetriever) Index(ctx context.Context, fragments []types.Fragment) error {
	if err := r.vector.Index(ctx, fragments); err != nil {
		return types.NewError(types.ErrRetrieval, "vector engine indexing failed").WithCause(err)
	}
	if err := r.lexical.Index(ctx, fragments); err != nil {
		return types.NewError(types.ErrRetrieval, "lexical engine indexing failed").WithCause(err)
	}
	return nil
}

// Search 并发查询两个引擎并做 RRF 融合，返回至多 limit 个片段。
// 单引擎失败视为该引擎召回为空并记日志；双引擎都失败返回 RETRIEVAL 错误。
// 双引擎都为空返回空结果，不是错误。
func (r *HybridRetriever) Search(ctx context.Context, query string, limit int) ([]types.Fragment, error) {
	if limit < 1 {
		return nil, types.NewError(types.ErrInvalidRequest, "limit must be >= 1")
	}

	var vectorHits, lexicalHits []types.Fragment
	var vectorErr, lexicalErr error

	// 两路召回相互独立，一路失败不取消另一路，
	// 所以闭包内捕获错误而不是返回给 errgroup。
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectorHits, vectorErr = r.vector.Search(gctx, query, r.config.CandidateCount)
		return nil
	})
	g.Go(func() error {
		lexicalHits, lexicalErr = r.lexical.Search(gctx, query, r.config.CandidateCount)
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil && lexicalErr != nil {
		r.logger.Error("both retrieval engines failed",
			zap.NamedError("vector", vectorErr),
			zap.NamedError("lexical", lexicalErr))
		return nil, types.NewError(types.ErrRetrieval, "both retrieval engines failed").
			WithCause(lexicalErr).
			WithRetryable(true)
	}
	if vectorErr != nil {
		r.logger.Warn("vector engine failed, degrading to lexical results", zap.Error(vectorErr))
		vectorHits = nil
	}
	if lexicalErr != nil {
		r.logger.Warn("lexical engine failed, degrading to vector results", zap.Error(lexicalErr))
		lexicalHits = nil
	}

	fused := r.fuse(vectorHits, lexicalHits)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	r.logger.Debug("hybrid search complete",
		zap.String("query", query),
		zap.Int("vector_hits", len(vectorHits)),
		zap.Int("lexical_hits", len(lexicalHits)),
		zap.Int("fused", len(fused)))

	return fused, nil
}

// SearchFiltered 超取 limit × OverfetchFactor 个候选，
// 按融合排名顺序应用过滤条件，凑满 limit 个即停。
func (r *HybridRetriever) SearchFiltered(ctx context.Context, query string, filters Filters, limit int) ([]types.Fragment, error) {
	candidates, err := r.Search(ctx, query, limit*r.config.OverfetchFactor)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}
		return candidates, nil
	}

	var out []types.Fragment
	for _, frag := range candidates {
		if filters.matches(frag) {
			out = append(out, frag)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// fuse 对两路召回做 Rank-Reciprocal Fusion。
// 排名单位是内容哈希，两路中文本相同的片段累加两项得分；
// 同分按首次出现顺序（先扫向量列表再扫词法列表）。
func (r *HybridRetriever) fuse(vectorHits, lexicalHits []types.Fragment) []types.Fragment {
	type fusedEntry struct {
		fragment types.Fragment
		score    float64
	}

	k := float64(r.config.RRFK)
	order := make([]uint64, 0, len(vectorHits)+len(lexicalHits))
	entries := make(map[uint64]*fusedEntry, len(vectorHits)+len(lexicalHits))

	accumulate := func(hits []types.Fragment) {
		for i, frag := range hits {
			hash := frag.ContentHash()
			entry, seen := entries[hash]
			if !seen {
				entry = &fusedEntry{fragment: frag}
				entries[hash] = entry
				order = append(order, hash)
			}
			entry.score += 1.0 / (k + float64(i+1))
		}
	}
	accumulate(vectorHits)
	accumulate(lexicalHits)

	sort.SliceStable(order, func(i, j int) bool {
		return entries[order[i]].score > entries[order[j]].score
	})

	out := make([]types.Fragment, 0, len(order))
	for _, hash := range order {
		out = append(out, entries[hash].fragment)
	}
	return out
}
