package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/api"
	"github.com/BaSui01/cookrag/session"
	"github.com/BaSui01/cookrag/types"
)

// =============================================================================
// 🗂️ 会话接口 Handler
// =============================================================================

// SessionHandler 会话管理处理器
type SessionHandler struct {
	sessions *session.Store
	logger   *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *session.Store, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With(zap.String("component", "session_handler")),
	}
}

// HandleCreate 创建新会话
// @Router /api/v1/sessions [post]
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	// 请求体可选
	var req api.SessionCreateRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}

	id := h.sessions.Create(req.UserID)
	h.logger.Info("session created", zap.String("session_id", id))
	WriteSuccess(w, api.SessionCreateResponse{SessionID: id})
}

// HandleSession 查询或删除单个会话，按路径 /api/v1/sessions/{id} 分发。
// @Router /api/v1/sessions/{id} [get]
// @Router /api/v1/sessions/{id} [delete]
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if id == "" || strings.Contains(id, "/") {
		WriteErrorMessage(w, types.ErrInvalidRequest, "session id is required", h.logger)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getSession(w, id)
	case http.MethodDelete:
		h.deleteSession(w, id)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		WriteJSON(w, http.StatusMethodNotAllowed, Response{
			Success: false,
			Error:   &ErrorInfo{Code: string(types.ErrInvalidRequest), Message: "method not allowed"},
		})
	}
}

func (h *SessionHandler) getSession(w http.ResponseWriter, id string) {
	sess := h.sessions.Get(id)
	if sess == nil {
		WriteJSON(w, http.StatusNotFound, Response{
			Success: false,
			Error:   &ErrorInfo{Code: string(types.ErrInvalidRequest), Message: "session not found or expired"},
		})
		return
	}

	WriteSuccess(w, api.SessionResponse{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Messages:  sess.Messages,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	})
}

func (h *SessionHandler) deleteSession(w http.ResponseWriter, id string) {
	if !h.sessions.Delete(id) {
		WriteJSON(w, http.StatusNotFound, Response{
			Success: false,
			Error:   &ErrorInfo{Code: string(types.ErrInvalidRequest), Message: "session not found"},
		})
		return
	}
	h.logger.Info("session deleted", zap.String("session_id", id))
	WriteSuccess(w, map[string]string{"session_id": id})
}
