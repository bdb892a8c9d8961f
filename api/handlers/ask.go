package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/api"
	"github.com/BaSui01/cookrag/llm"
	"github.com/BaSui01/cookrag/pipeline"
	"github.com/BaSui01/cookrag/session"
	"github.com/BaSui01/cookrag/types"
)

// Asker 问答编排接口，由 pipeline.Orchestrator 实现。
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) (pipeline.Answer, error)
	AskStream(ctx context.Context, sessionID, question string) (<-chan llm.StreamChunk, error)
}

// =============================================================================
// 💬 问答接口 Handler
// =============================================================================

// AskHandler 问答接口处理器
type AskHandler struct {
	asker    Asker
	sessions *session.Store
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAskHandler 创建问答处理器。timeout 为单次问答的最长处理时间，
// 流式接口不受其约束。
func NewAskHandler(asker Asker, sessions *session.Store, timeout time.Duration, logger *zap.Logger) *AskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AskHandler{
		asker:    asker,
		sessions: sessions,
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "ask_handler")),
	}
}

// HandleAsk 处理同步问答请求
// @Router /api/v1/ask [post]
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	sessionID, apiErr := h.resolveSession(&req)
	if apiErr != nil {
		WriteError(w, apiErr, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	answer, err := h.asker.Ask(ctx, sessionID, req.Question)
	if err != nil {
		h.handleAskError(w, err)
		return
	}

	h.logger.Info("question answered",
		zap.String("session_id", sessionID),
		zap.String("route", string(answer.Route)),
		zap.Bool("from_cache", answer.FromCache),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, api.AskResponse{
		SessionID: sessionID,
		Answer:    answer.Text,
		Route:     string(answer.Route),
		FromCache: answer.FromCache,
		Sources:   answer.Sources,
	})
}

// HandleAskStream 处理 WebSocket 流式问答。
// 客户端连接后发送一条 AskRequest，服务端按事件帧推送增量内容：
// chunk* (error | done)。done 帧携带会话 ID。
// @Router /api/v1/ask/stream [get]
func (h *AskHandler) HandleAskStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	ctx := r.Context()

	var req api.AskRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		h.logger.Warn("websocket read failed", zap.Error(err))
		return
	}
	sessionID, apiErr := h.resolveSession(&req)
	if apiErr != nil {
		_ = wsjson.Write(ctx, conn, api.StreamEvent{Type: "error", Error: apiErr.Message})
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}

	stream, err := h.asker.AskStream(ctx, sessionID, req.Question)
	if err != nil {
		_ = wsjson.Write(ctx, conn, api.StreamEvent{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "stream setup failed")
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			_ = wsjson.Write(ctx, conn, api.StreamEvent{Type: "error", Error: chunk.Err.Error()})
			conn.Close(websocket.StatusInternalError, "stream aborted")
			return
		}
		if err := wsjson.Write(ctx, conn, api.StreamEvent{Type: "chunk", Content: chunk.Content}); err != nil {
			h.logger.Debug("client went away mid-stream", zap.Error(err))
			return
		}
	}

	_ = wsjson.Write(ctx, conn, api.StreamEvent{Type: "done", SessionID: sessionID})
	conn.Close(websocket.StatusNormalClosure, "")
}

// resolveSession 校验问题并确定会话 ID，未提供时创建新会话。
func (h *AskHandler) resolveSession(req *api.AskRequest) (string, *types.Error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", types.NewError(types.ErrInvalidRequest, "question is required")
	}
	if req.SessionID != "" {
		return req.SessionID, nil
	}
	return h.sessions.Create(""), nil
}

func (h *AskHandler) handleAskError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}
	WriteError(w, types.NewError(types.ErrGeneration, "failed to answer question").WithCause(err), h.logger)
}
