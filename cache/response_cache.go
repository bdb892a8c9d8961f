package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry 缓存条目。
type Entry struct {
	Answer    string            `json:"answer"`
	CreatedAt time.Time         `json:"created_at"`
	HitCount  int               `json:"hit_count"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Stats 缓存统计。HitRate = hits / (hits+misses)，无请求时为 0。
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	HitRate   float64 `json:"hit_rate"`
}

// HotQuery 高频命中的问题。
type HotQuery struct {
	Question string `json:"question"`
	HitCount int    `json:"hit_count"`
}

// ResponseCache 回答缓存。双向链表加哈希表实现 O(1) 的 LRU 操作，
// 头部最近使用，尾部最久未使用。过期采用惰性删除，
// 访问发现过期即移除，另有 SweepExpired 做整表清扫。
//
// 匹配只做规范化后的精确匹配。如需语义级命中（近似问题复用回答），
// 可在 Get 未命中后挂接向量相似度查找，键结构不变。
type ResponseCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*cacheNode
	head    *cacheNode
	tail    *cacheNode

	hits      int64
	misses    int64
	sets      int64
	evictions int64

	// now 可注入，测试用
	now func() time.Time

	logger *zap.Logger
}

type cacheNode struct {
	key string
	// question 保留规范化后的原文，用于热点统计
	question string
	entry    Entry
	prev     *cacheNode
	next     *cacheNode
}

// NewResponseCache 创建回答缓存。
func NewResponseCache(maxSize int, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*cacheNode),
		now:     time.Now,
		logger:  logger.With(zap.String("component", "response_cache")),
	}
}

// normalizeQuestion 折叠空白并小写化。规范化结果决定缓存命中行为。
// 小写化用 strings.ToLower 的简单映射，不做 Unicode case folding，
// 'İ'、'ſ' 这类特殊码点不会与其折叠形式互相命中。
func normalizeQuestion(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// Key 由会话 ID 和规范化问题派生缓存键。
// 键带会话前缀，不同会话中的相同问题不会碰撞。
func Key(sessionID, question string) string {
	sum := sha256.Sum256([]byte(normalizeQuestion(question)))
	return sessionID + ":" + hex.EncodeToString(sum[:16])
}

// Get 查询缓存的回答。
// 未命中或已过期返回 ok=false；过期条目在发现时移除并计一次淘汰。
// 命中时条目升为最近使用并累加命中数，返回的回答与存入时逐字节一致。
func (c *ResponseCache) Get(sessionID, question string) (string, bool) {
	key := Key(sessionID, question)

	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.misses++
		return "", false
	}

	if c.now().Sub(node.entry.CreatedAt) > c.ttl {
		c.removeNode(node)
		delete(c.items, key)
		c.misses++
		c.evictions++
		return "", false
	}

	c.moveToHead(node)
	node.entry.HitCount++
	c.hits++
	return node.entry.Answer, true
}

// Set 写入回答并返回缓存键。
// 同键覆盖写会重置 CreatedAt 和 HitCount。
// 插入后若超出容量，逐条淘汰尾部最久未使用的条目直到回到上界。
func (c *ResponseCache) Set(sessionID, question, answer string, metadata map[string]string) string {
	key := Key(sessionID, question)
	entry := Entry{
		Answer:    answer,
		CreatedAt: c.now(),
		HitCount:  0,
		Metadata:  metadata,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sets++

	if node, ok := c.items[key]; ok {
		node.entry = entry
		c.moveToHead(node)
		return key
	}

	node := &cacheNode{
		key:      key,
		question: normalizeQuestion(question),
		entry:    entry,
	}
	c.items[key] = node
	c.addToHead(node)

	for len(c.items) > c.maxSize {
		c.evictTail()
	}

	return key
}

// Invalidate 删除指定会话和问题的条目，返回是否删除了东西。
func (c *ResponseCache) Invalidate(sessionID, question string) bool {
	key := Key(sessionID, question)

	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeNode(node)
	delete(c.items, key)
	return true
}

// Clear 清空全部条目，返回清除数。统计计数器不重置。
func (c *ResponseCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.items)
	c.items = make(map[string]*cacheNode)
	c.head = nil
	c.tail = nil
	return removed
}

// SweepExpired 移除所有 TTL 已过的条目，与 LRU 顺序无关，返回移除数。
func (c *ResponseCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, node := range c.items {
		if now.Sub(node.entry.CreatedAt) > c.ttl {
			c.removeNode(node)
			delete(c.items, key)
			c.evictions++
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("expired cache entries swept", zap.Int("removed", removed))
	}
	return removed
}

// GetStats 返回当前统计快照。
func (c *ResponseCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Sets:      c.sets,
		Evictions: c.evictions,
		Size:      len(c.items),
		MaxSize:   c.maxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// HotQueries 返回命中数最高的前 n 个问题（规范化形式），按命中数降序。
func (c *ResponseCache) HotQueries(n int) []HotQuery {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]HotQuery, 0, len(c.items))
	for _, node := range c.items {
		if node.entry.HitCount > 0 {
			out = append(out, HotQuery{Question: node.question, HitCount: node.entry.HitCount})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HitCount != out[j].HitCount {
			return out[i].HitCount > out[j].HitCount
		}
		return out[i].Question < out[j].Question
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// 以下链表操作均为 O(1)，调用方持有锁。

func (c *ResponseCache) addToHead(node *cacheNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *ResponseCache) removeNode(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

func (c *ResponseCache) moveToHead(node *cacheNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

func (c *ResponseCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
	c.evictions++
}
