package generate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/llm"
	"github.com/BaSui01/cookrag/types"
)

// RouteType 查询路由类型。
type RouteType string

const (
	// RouteList 列表/推荐类查询，只需要菜名。
	RouteList RouteType = "list"
	// RouteDetail 详细制作信息查询。
	RouteDetail RouteType = "detail"
	// RouteGeneral 其它一般性问题。
	RouteGeneral RouteType = "general"
)

// Generator 查询理解与回答生成器。
type Generator struct {
	provider llm.Provider
	budget   *llm.TokenBudget
	logger   *zap.Logger
}

// NewGenerator 创建生成器。budget 可为 nil，表示上下文不做预算裁剪。
func NewGenerator(provider llm.Provider, budget *llm.TokenBudget, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if budget == nil {
		budget = llm.NewTokenBudget(0, logger)
	}
	return &Generator{
		provider: provider,
		budget:   budget,
		logger:   logger.With(zap.String("component", "generator")),
	}
}

// ComposeQuery 结合会话上下文把当前问题补全为可独立理解的查询。
// 没有上下文时原样返回，不调模型。
func (g *Generator) ComposeQuery(ctx context.Context, sessionContext, question string) (string, error) {
	if sessionContext == "" {
		return question, nil
	}
	out, err := g.provider.Complete(ctx, fmt.Sprintf(composePrompt, sessionContext, question))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RouteQuery 把查询分类为 list/detail/general。
// 模型输出不在三类之内时归为 general。
func (g *Generator) RouteQuery(ctx context.Context, query string) (RouteType, error) {
	out, err := g.provider.Complete(ctx, fmt.Sprintf(routerPrompt, query))
	if err != nil {
		return "", err
	}

	switch route := RouteType(strings.ToLower(strings.TrimSpace(out))); route {
	case RouteList, RouteDetail, RouteGeneral:
		return route, nil
	default:
		g.logger.Debug("unrecognized route, defaulting to general", zap.String("raw", out))
		return RouteGeneral, nil
	}
}

// RewriteQuery 让模型判断是否重写查询以提高检索效果。
func (g *Generator) RewriteQuery(ctx context.Context, query string) (string, error) {
	out, err := g.provider.Complete(ctx, fmt.Sprintf(rewritePrompt, query))
	if err != nil {
		return "", err
	}

	rewritten := strings.TrimSpace(out)
	if rewritten == "" {
		return query, nil
	}
	if rewritten != query {
		g.logger.Info("query rewritten",
			zap.String("original", query),
			zap.String("rewritten", rewritten))
	}
	return rewritten, nil
}

// BasicAnswer 生成一般性回答。
func (g *Generator) BasicAnswer(ctx context.Context, query string, docs []types.Document) (string, error) {
	return g.provider.Complete(ctx, fmt.Sprintf(basicAnswerPrompt, query, g.buildContext(docs)))
}

// StepByStepAnswer 生成分步骤的详细回答。
func (g *Generator) StepByStepAnswer(ctx context.Context, query string, docs []types.Document) (string, error) {
	return g.provider.Complete(ctx, fmt.Sprintf(stepByStepPrompt, query, g.buildContext(docs)))
}

// BasicAnswerStream 流式生成一般性回答。
func (g *Generator) BasicAnswerStream(ctx context.Context, query string, docs []types.Document) (<-chan llm.StreamChunk, error) {
	return g.provider.Stream(ctx, fmt.Sprintf(basicAnswerPrompt, query, g.buildContext(docs)))
}

// StepByStepAnswerStream 流式生成分步骤回答。
func (g *Generator) StepByStepAnswerStream(ctx context.Context, query string, docs []types.Document) (<-chan llm.StreamChunk, error) {
	return g.provider.Stream(ctx, fmt.Sprintf(stepByStepPrompt, query, g.buildContext(docs)))
}

// ListAnswer 由检索到的菜名直接拼装推荐列表，不调模型。
// 超过三个只列前三个并注明剩余数量。
func (g *Generator) ListAnswer(docs []types.Document) string {
	if len(docs) == 0 {
		return "抱歉，没有找到匹配的菜谱。"
	}

	var names []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		name := doc.Metadata.DishName
		if name == "" {
			name = "未知菜品"
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	if len(names) == 1 {
		return "为您推荐：" + names[0]
	}

	shown := names
	if len(shown) > 3 {
		shown = shown[:3]
	}
	var b strings.Builder
	b.WriteString("为您推荐以下菜品：\n")
	for i, name := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	if rest := len(names) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n...还有%d个菜品可供选择。", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildContext 把父文档渲染为提示词上下文：
// 每篇带菜名/分类/难度的头部，整体受 token 预算约束。
func (g *Generator) buildContext(docs []types.Document) string {
	if len(docs) == 0 {
		return "没有找到匹配的菜谱。"
	}

	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		header := fmt.Sprintf("【食谱 %d】", i+1)
		if doc.Metadata.DishName != "" {
			header += " " + doc.Metadata.DishName
		}
		if doc.Metadata.Category != "" {
			header += " | 分类: " + doc.Metadata.Category
		}
		if doc.Metadata.Difficulty != "" {
			header += " | 难度: " + doc.Metadata.Difficulty
		}
		parts = append(parts, header+"\n"+doc.FullText)
	}

	return "\n" + strings.Repeat("=", 50) + "\n" + g.budget.JoinWithinBudget(parts, "\n")
}
