package types

import "hash/fnv"

// Metadata 携带文档和片段的固定元数据字段。
// 已知字段是类型安全的；Extra 作为前向兼容的开放扩展映射。
type Metadata struct {
	Category   string            `json:"category,omitempty"`
	Difficulty string            `json:"difficulty,omitempty"`
	DishName   string            `json:"dish_name,omitempty"`
	SourcePath string            `json:"source_path,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// 元数据过滤使用的键名。
const (
	MetaCategory   = "category"
	MetaDifficulty = "difficulty"
	MetaDishName   = "dish_name"
	MetaSourcePath = "source_path"
)

// Field 按键名取元数据值。未知键回退到 Extra 查找。
func (m Metadata) Field(key string) (string, bool) {
	switch key {
	case MetaCategory:
		return m.Category, m.Category != ""
	case MetaDifficulty:
		return m.Difficulty, m.Difficulty != ""
	case MetaDishName:
		return m.DishName, m.DishName != ""
	case MetaSourcePath:
		return m.SourcePath, m.SourcePath != ""
	}
	v, ok := m.Extra[key]
	return v, ok
}

// Fragment 是最小可检索的文本单元，由父文档切分得到。
type Fragment struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Text     string   `json:"text"`
	Ordinal  int      `json:"ordinal"`
	Metadata Metadata `json:"metadata"`
}

// ContentHash 返回片段文本的 FNV-64a 哈希。
// 融合排序以内容哈希作为片段身份：两个来源返回的结构相同的片段
// 会折叠为同一个排序单元，文本逐字节相同的不同片段也会合并。
func (f Fragment) ContentHash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(f.Text))
	return h.Sum64()
}

// Document 是片段所属的完整源文档。创建后不可变。
type Document struct {
	ID       string   `json:"id"`
	FullText string   `json:"full_text"`
	Metadata Metadata `json:"metadata"`
}
