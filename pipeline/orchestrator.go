package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/cache"
	"github.com/BaSui01/cookrag/generate"
	"github.com/BaSui01/cookrag/llm"
	"github.com/BaSui01/cookrag/retrieval"
	"github.com/BaSui01/cookrag/session"
	"github.com/BaSui01/cookrag/store"
	"github.com/BaSui01/cookrag/types"

	"github.com/BaSui01/cookrag/internal/metrics"
)

// 用户可见的兜底回答文案。
const (
	msgNoResults        = "没有找到任何相关文档块，请尝试其他菜品名称或关键词"
	msgNoDetail         = "未找到该菜品的详细信息，请尝试其他关键词"
	msgGenerationFailed = "生成菜谱回答失败，请重试"
)

// Answer 一次问答的结果。
type Answer struct {
	Text      string             `json:"text"`
	Route     generate.RouteType `json:"route"`
	FromCache bool               `json:"from_cache"`
	// Sources 回答引用的菜名，缓存命中时为空。
	Sources []string `json:"sources,omitempty"`
}

// Orchestrator 问答编排器。
// 不持有任何跨请求可变状态，所有状态在各组件内部自管；
// 编排器调用外部协作方（检索引擎、模型）时不持有任何组件的锁。
type Orchestrator struct {
	store     *store.FragmentStore
	retriever *retrieval.HybridRetriever
	cache     *cache.ResponseCache
	sessions  *session.Store
	generator *generate.Generator

	topK      int
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewOrchestrator 创建编排器。collector 可为 nil。
func NewOrchestrator(
	fragStore *store.FragmentStore,
	retriever *retrieval.HybridRetriever,
	responseCache *cache.ResponseCache,
	sessions *session.Store,
	generator *generate.Generator,
	topK int,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Orchestrator{
		store:     fragStore,
		retriever: retriever,
		cache:     responseCache,
		sessions:  sessions,
		generator: generator,
		topK:      topK,
		collector: collector,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// Ask 回答一个问题。
// 检索引擎全部失败时不向调用方抛错，返回"无结果"风格的回答。
func (o *Orchestrator) Ask(ctx context.Context, sessionID, question string) (Answer, error) {
	start := time.Now()

	if cached, ok := o.lookupCache(sessionID, question); ok {
		o.recordQuestion("cached", "hit", start)
		return cached, nil
	}

	prep, fallback := o.prepare(ctx, sessionID, question)
	if fallback != "" {
		o.writeBack(sessionID, question, fallback, prep.route)
		o.recordQuestion(string(prep.route), "no_results", start)
		return Answer{Text: fallback, Route: prep.route}, nil
	}

	if prep.route == generate.RouteList {
		answer := o.generator.ListAnswer(prep.docs)
		o.writeBack(sessionID, question, answer, prep.route)
		o.recordQuestion(string(prep.route), "success", start)
		return Answer{Text: answer, Route: prep.route, Sources: dishNames(prep.docs)}, nil
	}

	answer, err := o.generateAnswer(ctx, prep)
	outcome := "success"
	if err != nil {
		o.logger.Warn("answer generation failed", zap.Error(err))
		answer = msgGenerationFailed
		outcome = "generation_failed"
	}

	o.writeBack(sessionID, question, answer, prep.route)
	o.recordQuestion(string(prep.route), outcome, start)
	return Answer{Text: answer, Route: prep.route, Sources: dishNames(prep.docs)}, nil
}

// AskStream 流式回答。片段通过返回的通道送出，通道关闭表示流结束。
// 会话和缓存的写回只在整个流正常排空后发生；
// 流中途出错或调用方取消时不写回。
// 缓存命中和列表类查询退化为单片段流。
func (o *Orchestrator) AskStream(ctx context.Context, sessionID, question string) (<-chan llm.StreamChunk, error) {
	start := time.Now()

	if cached, ok := o.lookupCache(sessionID, question); ok {
		o.recordQuestion("cached", "hit", start)
		return singleChunk(cached.Text), nil
	}

	prep, fallback := o.prepare(ctx, sessionID, question)
	if fallback != "" {
		o.writeBack(sessionID, question, fallback, prep.route)
		o.recordQuestion(string(prep.route), "no_results", start)
		return singleChunk(fallback), nil
	}

	if prep.route == generate.RouteList {
		answer := o.generator.ListAnswer(prep.docs)
		o.writeBack(sessionID, question, answer, prep.route)
		o.recordQuestion(string(prep.route), "success", start)
		return singleChunk(answer), nil
	}

	var upstream <-chan llm.StreamChunk
	var err error
	if prep.route == generate.RouteDetail {
		upstream, err = o.generator.StepByStepAnswerStream(ctx, prep.fullQuestion, prep.docs)
	} else {
		upstream, err = o.generator.BasicAnswerStream(ctx, prep.fullQuestion, prep.docs)
	}
	if err != nil {
		o.logger.Warn("stream setup failed", zap.Error(err))
		o.recordQuestion(string(prep.route), "generation_failed", start)
		return singleChunk(msgGenerationFailed), nil
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)

		var buffer strings.Builder
		for chunk := range upstream {
			if chunk.Err != nil {
				o.logger.Warn("stream aborted", zap.Error(chunk.Err))
				o.recordQuestion(string(prep.route), "generation_failed", start)
				select {
				case out <- chunk:
				case <-ctx.Done():
				}
				return
			}
			buffer.WriteString(chunk.Content)
			select {
			case out <- chunk:
			case <-ctx.Done():
				// 调用方放弃，输出不完整，不写回
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
		// 整个流排空后一次性写回
		o.writeBack(sessionID, question, buffer.String(), prep.route)
		o.recordQuestion(string(prep.route), "success", start)
	}()
	return out, nil
}

// prepared 问答前半程（缓存未命中到父文档回溯）的产出。
type prepared struct {
	fullQuestion string
	route        generate.RouteType
	docs         []types.Document
}

// prepare 执行补全、路由、重写、检索和父文档回溯。
// 第二个返回值非空表示应直接以该文案作答（检索无结果等）。
func (o *Orchestrator) prepare(ctx context.Context, sessionID, question string) (prepared, string) {
	prep := prepared{fullQuestion: question, route: generate.RouteGeneral}

	sessionContext := o.sessions.GetContext(sessionID, false)
	if full, err := o.generator.ComposeQuery(ctx, sessionContext, question); err != nil {
		o.logger.Warn("query composition failed, using raw question", zap.Error(err))
	} else {
		prep.fullQuestion = full
	}

	if route, err := o.generator.RouteQuery(ctx, prep.fullQuestion); err != nil {
		o.logger.Warn("query routing failed, defaulting to general", zap.Error(err))
	} else {
		prep.route = route
	}

	// 列表查询保持原样，其余先做重写
	searchQuery := prep.fullQuestion
	if prep.route != generate.RouteList {
		if rewritten, err := o.generator.RewriteQuery(ctx, prep.fullQuestion); err != nil {
			o.logger.Warn("query rewrite failed, using composed question", zap.Error(err))
		} else {
			searchQuery = rewritten
		}
	}

	fragments, err := o.retrieve(ctx, searchQuery, prep.fullQuestion)
	if err != nil {
		// 双引擎失败：对用户表现为无结果，错误留在日志里
		o.logger.Error("retrieval failed on both engines", zap.Error(err))
		return prep, msgNoResults
	}
	if len(fragments) == 0 {
		return prep, msgNoResults
	}

	docs, skipped := o.store.ResolveParents(fragments)
	if skipped > 0 {
		o.logger.Debug("orphan fragments skipped", zap.Int("skipped", skipped))
	}
	if len(docs) == 0 {
		return prep, msgNoDetail
	}

	prep.docs = docs
	return prep, ""
}

// retrieve 执行混合检索，命中分类/难度关键词时自动套用元数据过滤。
func (o *Orchestrator) retrieve(ctx context.Context, searchQuery, fullQuestion string) ([]types.Fragment, error) {
	filters := ExtractFilters(fullQuestion)

	mode := "hybrid"
	var fragments []types.Fragment
	var err error
	if len(filters) > 0 {
		mode = "filtered"
		o.logger.Debug("metadata filters applied", zap.Any("filters", filters))
		fragments, err = o.retriever.SearchFiltered(ctx, searchQuery, filters, o.topK)
	} else {
		fragments, err = o.retriever.Search(ctx, searchQuery, o.topK)
	}

	if o.collector != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		o.collector.RecordRetrieval(mode, status, len(fragments))
	}
	return fragments, err
}

func (o *Orchestrator) generateAnswer(ctx context.Context, prep prepared) (string, error) {
	if prep.route == generate.RouteDetail {
		return o.generator.StepByStepAnswer(ctx, prep.fullQuestion, prep.docs)
	}
	return o.generator.BasicAnswer(ctx, prep.fullQuestion, prep.docs)
}

// lookupCache 查缓存；命中时也把这轮问答追加进会话。
func (o *Orchestrator) lookupCache(sessionID, question string) (Answer, bool) {
	answer, ok := o.cache.Get(sessionID, question)
	if o.collector != nil {
		if ok {
			o.collector.RecordCacheHit()
		} else {
			o.collector.RecordCacheMiss()
		}
	}
	if !ok {
		return Answer{}, false
	}

	o.sessions.AddMessage(sessionID, types.RoleUser, question, nil)
	o.sessions.AddMessage(sessionID, types.RoleAssistant, answer, nil)
	return Answer{Text: answer, FromCache: true}, true
}

// writeBack 把这轮问答写入会话和缓存。
// 会话可能已过期或被淘汰，写入失败不影响返回给用户的回答。
func (o *Orchestrator) writeBack(sessionID, question, answer string, route generate.RouteType) {
	o.sessions.AddMessage(sessionID, types.RoleUser, question, nil)
	o.sessions.AddMessage(sessionID, types.RoleAssistant, answer, nil)
	o.cache.Set(sessionID, question, answer, map[string]string{"route": string(route)})
}

func (o *Orchestrator) recordQuestion(route, outcome string, start time.Time) {
	if o.collector != nil {
		o.collector.RecordQuestion(route, outcome, time.Since(start))
	}
}

func singleChunk(text string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Content: text}
	close(ch)
	return ch
}

func dishNames(docs []types.Document) []string {
	var names []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		name := doc.Metadata.DishName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
