// Package embedding 把文本映射为稠密向量。
//
// OpenAIProvider 对接 OpenAI 兼容的 /v1/embeddings 接口；
// LocalProvider 是无外部依赖的确定性哈希向量实现，
// 用于离线开发和测试；CachedProvider 是 Redis 缓存装饰器，
// 避免重建索引时对相同文本重复计费。
package embedding
