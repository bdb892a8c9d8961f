package api

import (
	"time"

	"github.com/BaSui01/cookrag/cache"
	"github.com/BaSui01/cookrag/store"
	"github.com/BaSui01/cookrag/types"
)

// =============================================================================
// 💬 问答接口
// =============================================================================

// AskRequest 问答请求。
// SessionID 为空时服务端自动创建新会话，并在响应中返回。
type AskRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
}

// AskResponse 问答响应
type AskResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Route     string   `json:"route,omitempty"`
	FromCache bool     `json:"from_cache"`
	Sources   []string `json:"sources,omitempty"`
}

// StreamEvent WebSocket 流式问答的事件帧。
// Type 取值: "chunk"（增量内容）、"error"（流中止）、"done"（流结束）。
type StreamEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// =============================================================================
// 🗂️ 会话接口
// =============================================================================

// SessionCreateRequest 创建会话请求
type SessionCreateRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// SessionCreateResponse 创建会话响应
type SessionCreateResponse struct {
	SessionID string `json:"session_id"`
}

// SessionResponse 会话详情
type SessionResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Messages  []types.Message `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// =============================================================================
// 📊 统计接口
// =============================================================================

// StatsResponse 运行统计
type StatsResponse struct {
	Cache          cache.Stats      `json:"cache"`
	HotQueries     []cache.HotQuery `json:"hot_queries,omitempty"`
	Store          store.Stats      `json:"store"`
	ActiveSessions int              `json:"active_sessions"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
}
