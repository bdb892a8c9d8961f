package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/cache"
	"github.com/BaSui01/cookrag/embedding"
	"github.com/BaSui01/cookrag/generate"
	"github.com/BaSui01/cookrag/llm"
	"github.com/BaSui01/cookrag/retrieval"
	"github.com/BaSui01/cookrag/session"
	"github.com/BaSui01/cookrag/store"
	"github.com/BaSui01/cookrag/types"
)

// scriptedLLM 按提示词内容返回脚本化回答：
// 路由提示词返回 route，补全/重写提示词回显 query，其余返回 answer。
type scriptedLLM struct {
	route      string
	answer     string
	query      string
	err        error
	failStream bool
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	switch {
	case strings.Contains(prompt, "分类结果"):
		return s.route, nil
	case strings.Contains(prompt, "补全后的完整问题"), strings.Contains(prompt, "请输出最终查询"):
		return s.query, nil
	}
	return s.answer, nil
}

func (s *scriptedLLM) Stream(ctx context.Context, prompt string) (<-chan llm.StreamChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan llm.StreamChunk, 4)
	go func() {
		defer close(ch)
		half := len(s.answer) / 2
		ch <- llm.StreamChunk{Content: s.answer[:half]}
		if s.failStream {
			ch <- llm.StreamChunk{Err: errors.New("upstream dropped connection")}
			return
		}
		ch <- llm.StreamChunk{Content: s.answer[half:]}
	}()
	return ch, nil
}

type fixture struct {
	orch     *Orchestrator
	cache    *cache.ResponseCache
	sessions *session.Store
	llm      *scriptedLLM
}

// ask 把问题同步给脚本化模型，保证重写提示词回显的是当前问题。
func (f *fixture) ask(ctx context.Context, sessionID, question string) (Answer, error) {
	f.llm.query = question
	return f.orch.Ask(ctx, sessionID, question)
}

func (f *fixture) askStream(ctx context.Context, sessionID, question string) (<-chan llm.StreamChunk, error) {
	f.llm.query = question
	return f.orch.AskStream(ctx, sessionID, question)
}

// newFixture 组装一条完整的内存流水线：
// 本地哈希向量引擎 + BM25 词法引擎 + 静态菜谱语料。
func newFixture(t *testing.T, llmStub *scriptedLLM, docs []types.Document, frags []types.Fragment) *fixture {
	t.Helper()
	logger := zap.NewNop()

	src := &staticSource{docs: docs, frags: frags}
	fragStore := store.NewFragmentStore(src, logger)
	if len(docs) > 0 {
		_, err := fragStore.LoadAll(context.Background())
		require.NoError(t, err)
	}

	vector := retrieval.NewVectorEngine(embedding.NewLocalProvider(128), logger)
	lexical := retrieval.NewBM25Engine(1.5, 0.75, logger)
	retriever := retrieval.NewHybridRetriever(retrieval.DefaultConfig(), vector, lexical, logger)
	require.NoError(t, retriever.Index(context.Background(), fragStore.Fragments()))

	responseCache := cache.NewResponseCache(100, time.Hour, logger)
	sessions := session.NewStore(100, 10, time.Hour, 5, logger)
	generator := generate.NewGenerator(llmStub, nil, logger)

	return &fixture{
		orch:     NewOrchestrator(fragStore, retriever, responseCache, sessions, generator, 5, nil, logger),
		cache:    responseCache,
		sessions: sessions,
		llm:      llmStub,
	}
}

type staticSource struct {
	docs  []types.Document
	frags []types.Fragment
}

func (s *staticSource) Load(ctx context.Context) ([]types.Document, []types.Fragment, error) {
	return s.docs, s.frags, nil
}

func recipeCorpus() ([]types.Document, []types.Fragment) {
	meta1 := types.Metadata{Category: "荤菜", Difficulty: "中等", DishName: "红烧肉"}
	meta2 := types.Metadata{Category: "汤品", Difficulty: "简单", DishName: "番茄蛋汤"}
	docs := []types.Document{
		{ID: "p1", FullText: "红烧肉：选五花肉，焯水，炒糖色，小火慢炖。", Metadata: meta1},
		{ID: "p2", FullText: "番茄蛋汤：番茄切块，打蛋，水开下锅。", Metadata: meta2},
	}
	frags := []types.Fragment{
		{ID: "f1", ParentID: "p1", Text: "红烧肉 选五花肉 焯水", Ordinal: 0, Metadata: meta1},
		{ID: "f2", ParentID: "p1", Text: "红烧肉 炒糖色 小火慢炖", Ordinal: 1, Metadata: meta1},
		{ID: "f3", ParentID: "p2", Text: "番茄蛋汤 番茄切块 打蛋", Ordinal: 0, Metadata: meta2},
	}
	return docs, frags
}

func TestAsk_DetailFlow(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "detail", answer: "详细做法……"}, docs, frags)

	sid := f.sessions.Create("u1")
	got, err := f.ask(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)

	assert.Equal(t, "详细做法……", got.Text)
	assert.Equal(t, generate.RouteDetail, got.Route)
	assert.False(t, got.FromCache)
	assert.Contains(t, got.Sources, "红烧肉")

	// 写回：会话追加了一问一答，缓存有了条目
	sess := f.sessions.Get(sid)
	require.NotNil(t, sess)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, types.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "红烧肉怎么做", sess.Messages[0].Content)

	cached, ok := f.cache.Get(sid, "红烧肉怎么做")
	require.True(t, ok)
	assert.Equal(t, "详细做法……", cached)
}

func TestAsk_CacheHitSkipsGeneration(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "detail", answer: "第一次的回答"}, docs, frags)

	sid := f.sessions.Create("u1")
	first, err := f.ask(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)

	// 改掉脚本回答，命中缓存时不会再生成
	f.llm.answer = "不应该出现的新回答"
	second, err := f.ask(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)

	assert.True(t, second.FromCache)
	assert.Equal(t, first.Text, second.Text)

	// 缓存命中也追加会话消息
	sess := f.sessions.Get(sid)
	require.NotNil(t, sess)
	assert.Len(t, sess.Messages, 4)
}

func TestAsk_CacheIsolatedPerSession(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "general", answer: "回答"}, docs, frags)

	s1 := f.sessions.Create("u1")
	s2 := f.sessions.Create("u2")

	_, err := f.ask(context.Background(), s1, "红烧肉怎么做")
	require.NoError(t, err)

	_, ok := f.cache.Get(s2, "红烧肉怎么做")
	assert.False(t, ok, "cache entries are scoped to their session")
}

func TestAsk_ListRouteSkipsGeneration(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "list", answer: "不应被使用"}, docs, frags)

	sid := f.sessions.Create("u1")
	got, err := f.ask(context.Background(), sid, "推荐红烧肉这类荤菜")
	require.NoError(t, err)

	assert.Equal(t, generate.RouteList, got.Route)
	assert.Contains(t, got.Text, "红烧肉")
	assert.NotContains(t, got.Text, "不应被使用")
}

func TestAsk_FilterExcludesEverything(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "general", answer: "回答"}, docs, frags)

	// 语料里没有饮品分类，过滤后必然为空
	sid := f.sessions.Create("u1")
	got, err := f.ask(context.Background(), sid, "有什么饮品")
	require.NoError(t, err)
	assert.Equal(t, msgNoResults, got.Text)

	// 无结果的回答也会写回缓存
	cached, ok := f.cache.Get(sid, "有什么饮品")
	require.True(t, ok)
	assert.Equal(t, msgNoResults, cached)
}

func TestAsk_EmptyStoreFilteredSearch(t *testing.T) {
	f := newFixture(t, &scriptedLLM{route: "general", answer: "回答"}, nil, nil)

	sid := f.sessions.Create("u1")
	got, err := f.ask(context.Background(), sid, "有什么汤品")
	require.NoError(t, err)
	assert.Equal(t, msgNoResults, got.Text, "empty knowledge base answers gracefully")
}

func TestAsk_GenerationFailure(t *testing.T) {
	docs, frags := recipeCorpus()
	stub := &scriptedLLM{route: "general", answer: "回答"}
	f := newFixture(t, stub, docs, frags)

	sid := f.sessions.Create("u1")
	stub.err = errors.New("model down")

	// 路由和重写失败后降级继续，检索照常，生成失败给兜底文案
	got, err := f.ask(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)
	assert.Equal(t, msgGenerationFailed, got.Text)
}

func TestAskStream_WriteBackAfterDrain(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "detail", answer: "分步详细做法"}, docs, frags)

	sid := f.sessions.Create("u1")
	ch, err := f.askStream(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)

	var b strings.Builder
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		b.WriteString(chunk.Content)
	}
	assert.Equal(t, "分步详细做法", b.String())

	// 流排空后缓存里是完整拼接的回答
	cached, ok := f.cache.Get(sid, "红烧肉怎么做")
	require.True(t, ok)
	assert.Equal(t, "分步详细做法", cached)
}

func TestAskStream_AbortedStreamNotCached(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "detail", answer: "分步详细做法", failStream: true}, docs, frags)

	sid := f.sessions.Create("u1")
	ch, err := f.askStream(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)

	var sawErr bool
	for chunk := range ch {
		if chunk.Err != nil {
			sawErr = true
		}
	}
	require.True(t, sawErr)

	_, ok := f.cache.Get(sid, "红烧肉怎么做")
	assert.False(t, ok, "partial output must never be cached")
}

func TestAskStream_CacheHitSingleChunk(t *testing.T) {
	docs, frags := recipeCorpus()
	f := newFixture(t, &scriptedLLM{route: "general", answer: "完整回答"}, docs, frags)

	sid := f.sessions.Create("u1")
	_, err := f.ask(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)

	ch, err := f.askStream(context.Background(), sid, "红烧肉怎么做")
	require.NoError(t, err)

	var chunks []llm.StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 1)
	assert.Equal(t, "完整回答", chunks[0].Content)
}
