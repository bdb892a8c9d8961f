package embedding

import "context"

// Provider 向量化提供者。
type Provider interface {
	// Name 提供者名，用于日志和缓存键前缀。
	Name() string

	// Dimensions 输出向量的维度。
	Dimensions() int

	// Embed 向量化单条文本。
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch 批量向量化，返回与输入一一对应的向量。
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
