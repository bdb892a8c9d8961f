// =============================================================================
// 📦 CookRAG 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("COOKRAG").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 CookRAG 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Store 知识库配置
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Retrieval 混合检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Cache 问答缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Session 会话配置
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Embedding 嵌入服务配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（流式接口会用 websocket 绕过）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 单次问答的处理超时
	AskTimeout time.Duration `yaml:"ask_timeout" env:"ASK_TIMEOUT"`
	// 每个客户端 IP 的每秒请求数限制
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许的跨域来源，空表示拒绝跨域请求
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// StoreConfig 知识库配置
type StoreConfig struct {
	// 菜谱 Markdown 数据目录
	DataPath string `yaml:"data_path" env:"DATA_PATH"`
}

// RetrievalConfig 混合检索配置
type RetrievalConfig struct {
	// RRF 平滑常数 k
	RRFK int `yaml:"rrf_k" env:"RRF_K"`
	// 每个引擎的候选数量（与最终 limit 独立）
	CandidateCount int `yaml:"candidate_count" env:"CANDIDATE_COUNT"`
	// 元数据过滤时的过采样倍数
	OverfetchFactor int `yaml:"overfetch_factor" env:"OVERFETCH_FACTOR"`
	// 默认返回结果数
	TopK int `yaml:"top_k" env:"TOP_K"`
	// BM25 参数 k1 (1.2-2.0)
	BM25K1 float64 `yaml:"bm25_k1" env:"BM25_K1"`
	// BM25 参数 b (0.75)
	BM25B float64 `yaml:"bm25_b" env:"BM25_B"`
}

// CacheConfig 问答缓存配置
type CacheConfig struct {
	// 缓存最大条目数
	MaxSize int `yaml:"max_size" env:"MAX_SIZE"`
	// 缓存过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	// 最大同时存在的会话数（LRU 淘汰）
	MaxSessions int `yaml:"max_sessions" env:"MAX_SESSIONS"`
	// 每个会话保留的最大消息轮数
	MaxHistory int `yaml:"max_history" env:"MAX_HISTORY"`
	// 会话过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 构建上下文时使用的最近轮数
	ContextWindow int `yaml:"context_window" env:"CONTEXT_WINDOW"`
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	// 提供者: openai, local
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 向量维度
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Redis 嵌入缓存配置
	Cache EmbeddingCacheConfig `yaml:"cache" env:"CACHE"`
}

// EmbeddingCacheConfig Redis 嵌入缓存配置。
// 远程嵌入调用既慢又花钱，重建索引时相同文本的向量可以直接复用。
type EmbeddingCacheConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Redis 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 缓存过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	// 基础 URL（OpenAI 兼容接口）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 每秒请求数限制（0 表示不限制）
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 上下文 Token 预算（构建 prompt 时截断父文档）
	ContextTokenBudget int `yaml:"context_token_budget" env:"CONTEXT_TOKEN_BUDGET"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "COOKRAG",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Retrieval.RRFK <= 0 {
		errs = append(errs, "rrf_k must be positive")
	}
	if c.Retrieval.OverfetchFactor < 1 {
		errs = append(errs, "overfetch_factor must be >= 1")
	}
	if c.Cache.MaxSize <= 0 {
		errs = append(errs, "cache max_size must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		errs = append(errs, "max_sessions must be positive")
	}
	if c.Session.MaxHistory <= 0 {
		errs = append(errs, "max_history must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
