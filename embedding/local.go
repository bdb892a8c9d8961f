package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider 确定性的哈希向量实现：
// 把文本的字符 n-gram 哈希进固定数量的桶，再做 L2 归一化。
// 同一文本永远得到同一向量，字面相近的文本向量相近。
// 质量远不如真实嵌入模型，定位是离线开发和测试的替身。
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider 创建本地哈希向量提供者。
func NewLocalProvider(dimensions int) *LocalProvider {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &LocalProvider{dimensions: dimensions}
}

func (p *LocalProvider) Name() string    { return "local-hash" }
func (p *LocalProvider) Dimensions() int { return p.dimensions }

// Embed 向量化单条文本。
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, p.dimensions)
	for _, gram := range charBigrams(text) {
		h := fnv.New64a()
		h.Write([]byte(gram))
		sum := h.Sum64()
		bucket := int(sum % uint64(p.dimensions))
		// 最高位决定符号，减轻桶碰撞时的同向堆积
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1.0
		} else {
			vec[bucket] += 1.0
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// EmbedBatch 批量向量化。
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// charBigrams 提取小写化、去空白后的字符二元组；单字符文本退化为单元组。
func charBigrams(text string) []string {
	var runes []rune
	for _, r := range strings.ToLower(text) {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) == 0 {
		return nil
	}
	if len(runes) == 1 {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}
