package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenBudget 上下文 token 预算。
// 用 cl100k_base 编码表计数；编码表加载失败（比如离线环境）时
// 退化为按 rune 数估算，只记一条日志，不阻塞调用。
type TokenBudget struct {
	budget int

	once    sync.Once
	encoder *tiktoken.Tiktoken

	logger *zap.Logger
}

// NewTokenBudget 创建 token 预算器。budget <= 0 表示不限制。
func NewTokenBudget(budget int, logger *zap.Logger) *TokenBudget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenBudget{
		budget: budget,
		logger: logger.With(zap.String("component", "token_budget")),
	}
}

func (b *TokenBudget) init() {
	b.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			b.logger.Warn("tiktoken encoding unavailable, falling back to rune estimate", zap.Error(err))
			return
		}
		b.encoder = enc
	})
}

// Count 统计文本的 token 数。
func (b *TokenBudget) Count(text string) int {
	b.init()
	if b.encoder != nil {
		return len(b.encoder.Encode(text, nil, nil))
	}
	// 粗略估算：中文约一字一 token
	return len([]rune(text))
}

// Fits 判断文本是否在预算内。
func (b *TokenBudget) Fits(text string) bool {
	return b.budget <= 0 || b.Count(text) <= b.budget
}

// TrimDocuments 按顺序累加文档，预算内的保留，第一个放不下的截止。
// 至少保留一篇，避免预算偏小时检索结果整个被丢掉。
func (b *TokenBudget) TrimDocuments(docs []string) []string {
	if b.budget <= 0 || len(docs) == 0 {
		return docs
	}

	used := 0
	var kept []string
	for _, doc := range docs {
		n := b.Count(doc)
		if len(kept) > 0 && used+n > b.budget {
			break
		}
		kept = append(kept, doc)
		used += n
	}

	if len(kept) < len(docs) {
		b.logger.Debug("documents trimmed to token budget",
			zap.Int("kept", len(kept)),
			zap.Int("dropped", len(docs)-len(kept)),
			zap.Int("budget", b.budget))
	}
	return kept
}

// JoinWithinBudget 把片段用分隔符拼接，超预算的尾部片段丢弃。
func (b *TokenBudget) JoinWithinBudget(parts []string, sep string) string {
	return strings.Join(b.TrimDocuments(parts), sep)
}
