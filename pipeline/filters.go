package pipeline

import (
	"strings"

	"github.com/BaSui01/cookrag/retrieval"
	"github.com/BaSui01/cookrag/store"
	"github.com/BaSui01/cookrag/types"
)

// ExtractFilters 从问题文本中提取元数据过滤条件：
// 问题里出现已知的分类或难度标签时，按标签做等值过滤。
// 每类只取第一个命中的标签。
func ExtractFilters(question string) retrieval.Filters {
	filters := retrieval.Filters{}

	for _, category := range store.CategoryLabels() {
		if strings.Contains(question, category) {
			filters[types.MetaCategory] = []string{category}
			break
		}
	}
	for _, difficulty := range store.DifficultyLabels() {
		if strings.Contains(question, difficulty) {
			filters[types.MetaDifficulty] = []string{difficulty}
			break
		}
	}

	if len(filters) == 0 {
		return nil
	}
	return filters
}
