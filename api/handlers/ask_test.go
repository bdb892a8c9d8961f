package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/api"
	"github.com/BaSui01/cookrag/generate"
	"github.com/BaSui01/cookrag/llm"
	"github.com/BaSui01/cookrag/pipeline"
	"github.com/BaSui01/cookrag/session"
)

type stubAsker struct {
	answer    pipeline.Answer
	err       error
	chunks    []llm.StreamChunk
	streamErr error

	lastSessionID string
	lastQuestion  string
}

func (s *stubAsker) Ask(ctx context.Context, sessionID, question string) (pipeline.Answer, error) {
	s.lastSessionID = sessionID
	s.lastQuestion = question
	return s.answer, s.err
}

func (s *stubAsker) AskStream(ctx context.Context, sessionID, question string) (<-chan llm.StreamChunk, error) {
	s.lastSessionID = sessionID
	s.lastQuestion = question
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	ch := make(chan llm.StreamChunk, len(s.chunks))
	for _, chunk := range s.chunks {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func newAskHandler(asker Asker) (*AskHandler, *session.Store) {
	sessions := session.NewStore(10, 10, time.Hour, 5, zap.NewNop())
	return NewAskHandler(asker, sessions, time.Minute, zap.NewNop()), sessions
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func TestHandleAsk_Success(t *testing.T) {
	stub := &stubAsker{answer: pipeline.Answer{
		Text:    "详细做法",
		Route:   generate.RouteDetail,
		Sources: []string{"红烧肉"},
	}}
	h, sessions := newAskHandler(stub)
	sid := sessions.Create("u1")

	body := `{"session_id": "` + sid + `", "question": "红烧肉怎么做"}`
	rec := httptest.NewRecorder()
	h.HandleAsk(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got api.AskResponse
	resp := decodeResponse(t, rec, &got)
	assert.True(t, resp.Success)
	assert.Equal(t, sid, got.SessionID)
	assert.Equal(t, "详细做法", got.Answer)
	assert.Equal(t, "detail", got.Route)
	assert.Equal(t, []string{"红烧肉"}, got.Sources)
	assert.Equal(t, sid, stub.lastSessionID)
}

func TestHandleAsk_CreatesSessionWhenMissing(t *testing.T) {
	stub := &stubAsker{answer: pipeline.Answer{Text: "回答"}}
	h, sessions := newAskHandler(stub)

	rec := httptest.NewRecorder()
	h.HandleAsk(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ask",
		strings.NewReader(`{"question": "红烧肉怎么做"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got api.AskResponse
	decodeResponse(t, rec, &got)
	require.NotEmpty(t, got.SessionID)
	assert.NotNil(t, sessions.Get(got.SessionID))
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	h, _ := newAskHandler(&stubAsker{})

	rec := httptest.NewRecorder()
	h.HandleAsk(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ask",
		strings.NewReader(`{"question": "   "}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAsk_MethodNotAllowed(t *testing.T) {
	h, _ := newAskHandler(&stubAsker{})

	rec := httptest.NewRecorder()
	h.HandleAsk(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleAskStream_DeliversChunksAndDone(t *testing.T) {
	stub := &stubAsker{chunks: []llm.StreamChunk{
		{Content: "先焯水"},
		{Content: "再慢炖"},
	}}
	h, sessions := newAskHandler(stub)
	sid := sessions.Create("u1")

	srv := httptest.NewServer(http.HandlerFunc(h.HandleAskStream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, api.AskRequest{SessionID: sid, Question: "红烧肉怎么做"}))

	var events []api.StreamEvent
	for {
		var ev api.StreamEvent
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		events = append(events, ev)
		if ev.Type != "chunk" {
			break
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, "先焯水", events[0].Content)
	assert.Equal(t, "再慢炖", events[1].Content)
	assert.Equal(t, "done", events[2].Type)
	assert.Equal(t, sid, events[2].SessionID)
}

func TestHandleAskStream_ErrorEvent(t *testing.T) {
	stub := &stubAsker{chunks: []llm.StreamChunk{
		{Content: "部分内容"},
		{Err: errors.New("upstream dropped")},
	}}
	h, sessions := newAskHandler(stub)
	sid := sessions.Create("u1")

	srv := httptest.NewServer(http.HandlerFunc(h.HandleAskStream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, api.AskRequest{SessionID: sid, Question: "红烧肉怎么做"}))

	var ev api.StreamEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "chunk", ev.Type)

	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "error", ev.Type)
	assert.Contains(t, ev.Error, "upstream dropped")
}
