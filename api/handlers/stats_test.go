package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/api"
	"github.com/BaSui01/cookrag/cache"
	"github.com/BaSui01/cookrag/session"
	"github.com/BaSui01/cookrag/store"
	"github.com/BaSui01/cookrag/types"
)

type singleRecipeSource struct{}

func (singleRecipeSource) Load(ctx context.Context) ([]types.Document, []types.Fragment, error) {
	meta := types.Metadata{Category: "荤菜", Difficulty: "中等", DishName: "红烧肉"}
	docs := []types.Document{{ID: "p1", FullText: "红烧肉做法", Metadata: meta}}
	frags := []types.Fragment{{ID: "f1", ParentID: "p1", Text: "红烧肉做法", Metadata: meta}}
	return docs, frags, nil
}

func TestHandleStats(t *testing.T) {
	logger := zap.NewNop()
	responseCache := cache.NewResponseCache(10, time.Hour, logger)
	sessions := session.NewStore(10, 10, time.Hour, 5, logger)
	fragStore := store.NewFragmentStore(singleRecipeSource{}, logger)
	_, err := fragStore.LoadAll(context.Background())
	require.NoError(t, err)

	sessions.Create("u1")
	responseCache.Set("s1", "红烧肉怎么做", "回答", nil)
	responseCache.Get("s1", "红烧肉怎么做")
	responseCache.Get("s1", "红烧肉怎么做")

	h := NewStatsHandler(responseCache, sessions, fragStore, logger)

	rec := httptest.NewRecorder()
	h.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got api.StatsResponse
	decodeResponse(t, rec, &got)

	assert.Equal(t, int64(2), got.Cache.Hits)
	assert.Equal(t, 1, got.Store.TotalDocuments)
	assert.Equal(t, 1, got.ActiveSessions)
	require.Len(t, got.HotQueries, 1)
	assert.Equal(t, 2, got.HotQueries[0].HitCount)
}

func TestHandleStats_MethodNotAllowed(t *testing.T) {
	h := NewStatsHandler(cache.NewResponseCache(10, time.Hour, nil),
		session.NewStore(10, 10, time.Hour, 5, nil),
		store.NewFragmentStore(singleRecipeSource{}, nil), nil)

	rec := httptest.NewRecorder()
	h.HandleStats(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
