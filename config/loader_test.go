// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务默认值
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	// 验证检索默认值
	assert.Equal(t, 60, cfg.Retrieval.RRFK)
	assert.Equal(t, 3, cfg.Retrieval.OverfetchFactor)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 1.5, cfg.Retrieval.BM25K1)

	// 验证缓存和会话默认值
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Session.MaxSessions)
	assert.Equal(t, 10, cfg.Session.MaxHistory)
	assert.Equal(t, 5, cfg.Session.ContextWindow)

	// 验证日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// 默认配置必须通过验证
	require.NoError(t, cfg.Validate())
}

// --- YAML 加载测试 ---

func TestLoader_LoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yamlContent := `
store:
  data_path: /srv/recipes
retrieval:
  rrf_k: 30
  top_k: 8
cache:
  max_size: 50
  ttl: 10m
session:
  max_history: 3
llm:
  model: deepseek-chat
  temperature: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/recipes", cfg.Store.DataPath)
	assert.Equal(t, 30, cfg.Retrieval.RRFK)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Session.MaxHistory)
	assert.Equal(t, 0.5, cfg.LLM.Temperature)

	// 未覆盖的字段保持默认值
	assert.Equal(t, 3, cfg.Retrieval.OverfetchFactor)
	assert.Equal(t, 1000, cfg.Session.MaxSessions)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Retrieval.RRFK)
}

// --- 环境变量覆盖测试 ---

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("COOKRAG_CACHE_MAX_SIZE", "7")
	t.Setenv("COOKRAG_CACHE_TTL", "90s")
	t.Setenv("COOKRAG_LLM_API_KEY", "sk-test")
	t.Setenv("COOKRAG_EMBEDDING_CACHE_ENABLED", "true")
	t.Setenv("COOKRAG_LOG_OUTPUT_PATHS", "stdout, /var/log/cookrag.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Cache.MaxSize)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.True(t, cfg.Embedding.Cache.Enabled)
	assert.Equal(t, []string{"stdout", "/var/log/cookrag.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvPrefix(t *testing.T) {
	t.Setenv("RECIPE_RETRIEVAL_TOP_K", "12")

	cfg, err := NewLoader().WithEnvPrefix("RECIPE").Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Retrieval.TopK)
}

// --- 验证测试 ---

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.MaxSize = 0
	cfg.Retrieval.OverfetchFactor = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_size")
	assert.Contains(t, err.Error(), "overfetch_factor")
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.NoError(t, err)
}
