package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/types"
)

// BM25Engine 基于 BM25 的词法检索引擎。
// 索引时预计算词频、文档长度和 IDF，查询时只做打分。
type BM25Engine struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	fragments []types.Fragment
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
	idf       map[string]float64

	logger *zap.Logger
}

// NewBM25Engine 创建 BM25 引擎。k1 控制词频饱和，b 控制长度归一化。
func NewBM25Engine(k1, b float64, logger *zap.Logger) *BM25Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BM25Engine{
		k1:     k1,
		b:      b,
		idf:    make(map[string]float64),
		logger: logger.With(zap.String("component", "bm25_engine")),
	}
}

func (e *BM25Engine) Name() string { return "bm25" }

// Index 建立倒排统计。整体替换旧索引。
func (e *BM25Engine) Index(ctx context.Context, fragments []types.Fragment) error {
	termFreqs := make([]map[string]int, len(fragments))
	docLens := make([]int, len(fragments))
	termDocCount := make(map[string]int)
	totalLen := 0

	for i, frag := range fragments {
		terms := tokenize(frag.Text)
		docLens[i] = len(terms)
		totalLen += len(terms)

		freq := make(map[string]int, len(terms))
		for _, term := range terms {
			freq[term]++
		}
		termFreqs[i] = freq

		for term := range freq {
			termDocCount[term]++
		}
	}

	avgDocLen := 0.0
	if len(fragments) > 0 {
		avgDocLen = float64(totalLen) / float64(len(fragments))
	}

	n := float64(len(fragments))
	idf := make(map[string]float64, len(termDocCount))
	for term, df := range termDocCount {
		idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}

	e.mu.Lock()
	e.fragments = fragments
	e.termFreqs = termFreqs
	e.docLens = docLens
	e.avgDocLen = avgDocLen
	e.idf = idf
	e.mu.Unlock()

	e.logger.Info("bm25 index built",
		zap.Int("fragments", len(fragments)),
		zap.Int("vocabulary", len(idf)))

	return nil
}

// Search 对查询打分并返回得分为正的前 k 个片段。
func (e *BM25Engine) Search(ctx context.Context, query string, k int) ([]types.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || len(e.fragments) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored

	for i := range e.fragments {
		score := e.score(queryTerms, i)
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}

	// 同分保持索引顺序，排序结果确定
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

// score 对单个文档计算 BM25 得分。调用方持有读锁。
func (e *BM25Engine) score(queryTerms []string, i int) float64 {
	freq := e.termFreqs[i]
	docLen := float64(e.docLens[i])

	score := 0.0
	for _, term := range queryTerms {
		tf, ok := freq[term]
		if !ok {
			continue
		}
		idf := e.idf[term]
		numerator := float64(tf) * (e.k1 + 1.0)
		denominator := float64(tf) + e.k1*(1.0-e.b+e.b*(docLen/e.avgDocLen))
		score += idf * (numerator / denominator)
	}
	return score
}
