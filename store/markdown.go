package store

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/types"
)

// categoryMapping 把数据目录名映射为中文分类标签。
var categoryMapping = map[string]string{
	"meat_dish":      "荤菜",
	"vegetable_dish": "素菜",
	"soup":           "汤品",
	"dessert":        "甜品",
	"breakfast":      "早餐",
	"staple":         "主食",
	"aquatic":        "水产",
	"condiment":      "调料",
	"drink":          "饮品",
}

// difficultyByStars 按 ★ 数量从高到低匹配难度标签。
var difficultyByStars = []struct {
	marker string
	label  string
}{
	{"★★★★★", "非常困难"},
	{"★★★★", "困难"},
	{"★★★", "中等"},
	{"★★", "简单"},
	{"★", "非常简单"},
}

// CategoryLabels 返回已知的分类标签列表，顺序稳定。
func CategoryLabels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, v := range categoryMapping {
		if !seen[v] {
			seen[v] = true
			labels = append(labels, v)
		}
	}
	sort.Strings(labels)
	return labels
}

// DifficultyLabels 返回已知的难度标签列表。
func DifficultyLabels() []string {
	labels := make([]string, 0, len(difficultyByStars))
	for _, d := range difficultyByStars {
		labels = append(labels, d.label)
	}
	return labels
}

// MarkdownSource 从目录树加载菜谱 Markdown 文件。
// 每个 .md 文件是一个父文档；按标题切分出片段。
// 分类取自路径中的目录名，难度取自正文里的 ★ 数量，菜名取自文件名。
type MarkdownSource struct {
	dataPath string
	logger   *zap.Logger
}

// NewMarkdownSource 创建 Markdown 数据源。
func NewMarkdownSource(dataPath string, logger *zap.Logger) *MarkdownSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkdownSource{
		dataPath: dataPath,
		logger:   logger.With(zap.String("component", "markdown_source")),
	}
}

// Load 遍历数据目录，返回父文档和切分后的片段。
func (s *MarkdownSource) Load(ctx context.Context) ([]types.Document, []types.Fragment, error) {
	if _, err := os.Stat(s.dataPath); err != nil {
		return nil, nil, fmt.Errorf("data path %s: %w", s.dataPath, err)
	}

	var docs []types.Document
	var frags []types.Fragment

	err := filepath.WalkDir(s.dataPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		doc, docFrags, loadErr := s.loadFile(path)
		if loadErr != nil {
			// 单个坏文件不拖垮整体加载
			s.logger.Warn("skipping unreadable recipe file",
				zap.String("path", path),
				zap.Error(loadErr))
			return nil
		}

		docs = append(docs, doc)
		frags = append(frags, docFrags...)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", s.dataPath, err)
	}

	s.logger.Info("markdown source loaded",
		zap.Int("documents", len(docs)),
		zap.Int("fragments", len(frags)))

	return docs, frags, nil
}

// loadFile 读取单个菜谱文件，生成父文档和片段。
func (s *MarkdownSource) loadFile(path string) (types.Document, []types.Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, nil, err
	}

	relPath, err := filepath.Rel(s.dataPath, path)
	if err != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	meta := types.Metadata{
		Category:   categoryFromPath(relPath),
		Difficulty: difficultyFromContent(string(data)),
		DishName:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SourcePath: relPath,
	}

	doc := types.Document{
		ID:       parentID(relPath),
		FullText: string(data),
		Metadata: meta,
	}

	sections := splitByHeading(string(data))
	frags := make([]types.Fragment, 0, len(sections))
	for i, text := range sections {
		frags = append(frags, types.Fragment{
			ID:       uuid.NewString(),
			ParentID: doc.ID,
			Text:     text,
			Ordinal:  i,
			Metadata: meta,
		})
	}

	return doc, frags, nil
}

// parentID 由相对路径哈希得到稳定的父文档 ID。
func parentID(relPath string) string {
	sum := sha256.Sum256([]byte(relPath))
	return hex.EncodeToString(sum[:16])
}

// categoryFromPath 在路径的目录段中查找分类映射，找不到归为"其他"。
func categoryFromPath(relPath string) string {
	for _, part := range strings.Split(relPath, "/") {
		if label, ok := categoryMapping[part]; ok {
			return label
		}
	}
	return "其他"
}

// difficultyFromContent 按正文中最长的 ★ 串判定难度。
func difficultyFromContent(content string) string {
	for _, d := range difficultyByStars {
		if strings.Contains(content, d.marker) {
			return d.label
		}
	}
	return "未知"
}

// splitByHeading 按 ATX 标题（# 开头）切分正文，标题保留在所属片段内。
// 没有任何标题时整个正文作为单一片段。
func splitByHeading(content string) []string {
	var sections [][]string
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if isHeading(line) || len(sections) == 0 {
			sections = append(sections, nil)
		}
		sections[len(sections)-1] = append(sections[len(sections)-1], line)
	}

	out := make([]string, 0, len(sections))
	for _, lines := range sections {
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// isHeading 检测 ATX 风格标题（1-6 个 # 后跟标题文本）。
func isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	level := 0
	for _, ch := range trimmed {
		if ch != '#' {
			break
		}
		level++
	}
	return level >= 1 && level <= 6 && strings.TrimSpace(trimmed[level:]) != ""
}
