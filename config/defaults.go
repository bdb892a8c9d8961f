// =============================================================================
// 📦 CookRAG 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Store:     DefaultStoreConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Cache:     DefaultCacheConfig(),
		Session:   DefaultSessionConfig(),
		Embedding: DefaultEmbeddingConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		AskTimeout:      2 * time.Minute,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultStoreConfig 返回默认知识库配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DataPath: "data/cook",
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		RRFK:            60,
		CandidateCount:  5,
		OverfetchFactor: 3,
		TopK:            5,
		BM25K1:          1.5,
		BM25B:           0.75,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: 1000,
		TTL:     time.Hour,
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxSessions:   1000,
		MaxHistory:    10,
		TTL:           time.Hour,
		ContextWindow: 5,
	}
}

// DefaultEmbeddingConfig 返回默认嵌入配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "local",
		Model:      "text-embedding-3-small",
		Dimensions: 256,
		Timeout:    30 * time.Second,
		Cache: EmbeddingCacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			TTL:     24 * time.Hour,
		},
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:            "https://api.deepseek.com",
		Model:              "deepseek-chat",
		Temperature:        0.1,
		MaxTokens:          2048,
		Timeout:            2 * time.Minute,
		RequestsPerSecond:  5,
		ContextTokenBudget: 6000,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}
