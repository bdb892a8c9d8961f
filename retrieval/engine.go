package retrieval

import (
	"context"

	"github.com/BaSui01/cookrag/types"
)

// Engine 单个检索引擎：对查询返回按相关性降序的片段列表。
// 第一个元素最相关，排名从 1 开始计。
type Engine interface {
	// Name 引擎名，用于日志和诊断。
	Name() string

	// Index 建立索引。重复调用整体替换。
	Index(ctx context.Context, fragments []types.Fragment) error

	// Search 返回至多 k 个片段，按相关性降序。
	// 无命中返回空切片，不是错误。
	Search(ctx context.Context, query string, k int) ([]types.Fragment, error)
}
