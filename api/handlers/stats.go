package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/api"
	"github.com/BaSui01/cookrag/cache"
	"github.com/BaSui01/cookrag/session"
	"github.com/BaSui01/cookrag/store"
)

// =============================================================================
// 📊 统计接口 Handler
// =============================================================================

// StatsHandler 运行统计处理器
type StatsHandler struct {
	cache     *cache.ResponseCache
	sessions  *session.Store
	fragStore *store.FragmentStore
	startedAt time.Time
	logger    *zap.Logger
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(responseCache *cache.ResponseCache, sessions *session.Store, fragStore *store.FragmentStore, logger *zap.Logger) *StatsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{
		cache:     responseCache,
		sessions:  sessions,
		fragStore: fragStore,
		startedAt: time.Now(),
		logger:    logger.With(zap.String("component", "stats_handler")),
	}
}

// HandleStats 返回缓存、会话和知识库的运行统计
// @Router /api/v1/stats [get]
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteSuccess(w, api.StatsResponse{
		Cache:          h.cache.GetStats(),
		HotQueries:     h.cache.HotQueries(10),
		Store:          h.fragStore.GetStats(),
		ActiveSessions: h.sessions.ActiveCount(),
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
	})
}
