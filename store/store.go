package store

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/types"
)

// DocumentSource 是文档的外部来源：返回已切分好的父文档和片段。
// 实现见 MarkdownSource；测试可注入静态数据。
type DocumentSource interface {
	Load(ctx context.Context) ([]types.Document, []types.Fragment, error)
}

// FragmentStore 持有父文档和片段，加载后只读。
type FragmentStore struct {
	mu        sync.RWMutex
	source    DocumentSource
	documents []types.Document
	docByID   map[string]int // parentID -> documents 下标
	fragments []types.Fragment
	logger    *zap.Logger
}

// NewFragmentStore 创建片段存储。
func NewFragmentStore(source DocumentSource, logger *zap.Logger) *FragmentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FragmentStore{
		source: source,
		logger: logger.With(zap.String("component", "fragment_store")),
	}
}

// LoadAll 从数据源批量加载文档。幂等：重复调用整体替换。
// 数据源不可达或为空时返回 INGESTION 错误，且不触碰已有状态
// （先在锁外构建完整快照，成功后一次性换入）。
func (s *FragmentStore) LoadAll(ctx context.Context) ([]types.Document, error) {
	docs, frags, err := s.source.Load(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrIngestion, "document source load failed").WithCause(err)
	}
	if len(docs) == 0 {
		return nil, types.NewError(types.ErrIngestion, "document source returned no documents")
	}

	docByID := make(map[string]int, len(docs))
	for i, doc := range docs {
		docByID[doc.ID] = i
	}

	s.mu.Lock()
	s.documents = docs
	s.docByID = docByID
	s.fragments = frags
	s.mu.Unlock()

	s.logger.Info("knowledge base loaded",
		zap.Int("documents", len(docs)),
		zap.Int("fragments", len(frags)))

	out := make([]types.Document, len(docs))
	copy(out, docs)
	return out, nil
}

// Fragments 返回所有片段的副本，供检索引擎建立索引。
func (s *FragmentStore) Fragments() []types.Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Fragment, len(s.fragments))
	copy(out, s.fragments)
	return out
}

// Documents 返回所有父文档的副本。
func (s *FragmentStore) Documents() []types.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Document, len(s.documents))
	copy(out, s.documents)
	return out
}

// ResolveParents 把检索到的片段回溯为去重后的父文档列表。
// 相关性 = 输入片段中 parentID 命中该文档的个数，按相关性降序；
// 相关性相同时保持片段首次出现的顺序。
// 未知 parentID 的片段静默跳过，跳过数通过第二个返回值暴露用于诊断。
func (s *FragmentStore) ResolveParents(fragments []types.Fragment) ([]types.Document, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	relevance := make(map[string]int)
	firstSeen := make([]string, 0, len(fragments))
	skipped := 0

	for _, frag := range fragments {
		if _, ok := s.docByID[frag.ParentID]; frag.ParentID == "" || !ok {
			skipped++
			continue
		}
		if _, seen := relevance[frag.ParentID]; !seen {
			firstSeen = append(firstSeen, frag.ParentID)
		}
		relevance[frag.ParentID]++
	}

	// firstSeen 本身就是首次出现顺序，稳定排序只按相关性调整
	sort.SliceStable(firstSeen, func(i, j int) bool {
		return relevance[firstSeen[i]] > relevance[firstSeen[j]]
	})

	docs := make([]types.Document, 0, len(firstSeen))
	for _, parentID := range firstSeen {
		docs = append(docs, s.documents[s.docByID[parentID]])
	}

	if skipped > 0 {
		s.logger.Debug("fragments skipped during parent resolution",
			zap.Int("skipped", skipped),
			zap.Int("resolved", len(docs)))
	}

	return docs, skipped
}

// FilterByMetadata 按元数据键值等值匹配过滤父文档。线性扫描，不支持范围查询。
func (s *FragmentStore) FilterByMetadata(key, value string) []types.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Document
	for _, doc := range s.documents {
		if v, ok := doc.Metadata.Field(key); ok && v == value {
			out = append(out, doc)
		}
	}
	return out
}

// Stats 知识库统计信息。
type Stats struct {
	TotalDocuments int            `json:"total_documents"`
	TotalFragments int            `json:"total_fragments"`
	Categories     map[string]int `json:"categories"`
	Difficulties   map[string]int `json:"difficulties"`
}

// GetStats 返回文档总数、片段总数以及分类/难度分布。
func (s *FragmentStore) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalDocuments: len(s.documents),
		TotalFragments: len(s.fragments),
		Categories:     make(map[string]int),
		Difficulties:   make(map[string]int),
	}
	for _, doc := range s.documents {
		stats.Categories[doc.Metadata.Category]++
		stats.Difficulties[doc.Metadata.Difficulty]++
	}
	return stats
}
