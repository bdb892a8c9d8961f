package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag/types"
)

// Session 一个用户的一段对话历史。
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Messages  []types.Message `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store 会话存储。双向链表加哈希表维护 LRU 顺序，
// 头部最近触碰，尾部最久未触碰。
type Store struct {
	mu            sync.Mutex
	maxSessions   int
	maxHistory    int
	ttl           time.Duration
	contextWindow int

	items map[string]*sessionNode
	head  *sessionNode
	tail  *sessionNode

	evictions int64

	// now 可注入，测试用
	now func() time.Time

	logger *zap.Logger
}

type sessionNode struct {
	session *Session
	prev    *sessionNode
	next    *sessionNode
}

// NewStore 创建会话存储。
// maxHistory 是保留的对话轮数上限（一轮为一问一答两条消息），
// contextWindow 是拼上下文时回看的轮数。
func NewStore(maxSessions, maxHistory int, ttl time.Duration, contextWindow int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		maxSessions:   maxSessions,
		maxHistory:    maxHistory,
		ttl:           ttl,
		contextWindow: contextWindow,
		items:         make(map[string]*sessionNode),
		now:           time.Now,
		logger:        logger.With(zap.String("component", "session_store")),
	}
}

// Create 创建新会话并返回会话 ID。
// 超出 maxSessions 时先淘汰最久未触碰的会话，容量上界永不被突破。
func (s *Store) Create(userID string) string {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := &sessionNode{session: sess}
	s.items[sess.ID] = node
	s.addToHead(node)

	for len(s.items) > s.maxSessions {
		s.evictTail()
	}

	return sess.ID
}

// Get 查询会话。不存在或已过期返回 nil。
// 过期会话在发现时移除（惰性过期）。
// 命中刷新 LRU 顺序，但不推进 UpdatedAt。返回的是副本。
func (s *Store) Get(sessionID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.liveNode(sessionID)
	if node == nil {
		return nil
	}

	s.moveToHead(node)
	return copySession(node.session)
}

// AddMessage 向会话追加一条消息，返回是否成功（会话缺失或过期返回 false）。
// 消息数超过 2×maxHistory 时从头部成对丢弃最旧的两条，保持角色交替。
// 推进 UpdatedAt。
func (s *Store) AddMessage(sessionID string, role types.Role, content string, metadata map[string]string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.liveNode(sessionID)
	if node == nil {
		return false
	}

	msg := types.NewMessage(role, content)
	msg.Timestamp = now
	msg.Metadata = metadata
	sess := node.session
	sess.Messages = append(sess.Messages, msg)

	if limit := 2 * s.maxHistory; len(sess.Messages) > limit {
		drop := len(sess.Messages) - limit
		if drop%2 == 1 {
			drop++
		}
		// 拷贝到新底层数组，被丢弃的消息立即可回收
		trimmed := make([]types.Message, len(sess.Messages)-drop)
		copy(trimmed, sess.Messages[drop:])
		sess.Messages = trimmed
	}

	sess.UpdatedAt = now
	s.moveToHead(node)
	return true
}

// roleLabels 渲染上下文时的角色标签。
var roleLabels = map[types.Role]string{
	types.RoleUser:      "用户",
	types.RoleAssistant: "助手",
	types.RoleSystem:    "系统",
}

// GetContext 渲染会话的文本上下文：
// includeCurrent 为 false 且末尾是用户消息时先排除它
// （视为尚未回答的在途问题），再取最近 2×contextWindow 条消息，
// 按时间顺序渲染为 "<角色>: <内容>" 逐行拼接。
// 会话缺失、过期或为空时返回空串，从不报错。
func (s *Store) GetContext(sessionID string, includeCurrent bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.liveNode(sessionID)
	if node == nil {
		return ""
	}

	// 先排除在途问题再取窗口，窗口内始终是完整的历史轮次。
	msgs := node.session.Messages
	if !includeCurrent && len(msgs) > 0 && msgs[len(msgs)-1].Role == types.RoleUser {
		msgs = msgs[:len(msgs)-1]
	}
	if window := 2 * s.contextWindow; len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	if len(msgs) == 0 {
		return ""
	}

	lines := make([]string, len(msgs))
	for i, msg := range msgs {
		label, ok := roleLabels[msg.Role]
		if !ok {
			label = string(msg.Role)
		}
		lines[i] = label + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}

// Delete 显式删除会话，返回是否删除了东西。
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.items[sessionID]
	if !ok {
		return false
	}
	s.removeNode(node)
	delete(s.items, sessionID)
	return true
}

// SweepExpired 移除所有 TTL 已过的会话，返回移除数。
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, node := range s.items {
		if now.Sub(node.session.UpdatedAt) > s.ttl {
			s.removeNode(node)
			delete(s.items, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("expired sessions swept", zap.Int("removed", removed))
	}
	return removed
}

// ActiveCount 当前会话数。
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Evictions 因容量淘汰的会话总数。
func (s *Store) Evictions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictions
}

// liveNode 返回未过期的节点，过期节点就地移除。调用方持有锁。
func (s *Store) liveNode(sessionID string) *sessionNode {
	node, ok := s.items[sessionID]
	if !ok {
		return nil
	}
	if s.now().Sub(node.session.UpdatedAt) > s.ttl {
		s.removeNode(node)
		delete(s.items, sessionID)
		return nil
	}
	return node
}

func copySession(sess *Session) *Session {
	out := *sess
	out.Messages = make([]types.Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return &out
}

// 以下链表操作均为 O(1)，调用方持有锁。

func (s *Store) addToHead(node *sessionNode) {
	node.prev = nil
	node.next = s.head
	if s.head != nil {
		s.head.prev = node
	}
	s.head = node
	if s.tail == nil {
		s.tail = node
	}
}

func (s *Store) removeNode(node *sessionNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		s.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		s.tail = node.prev
	}
}

func (s *Store) moveToHead(node *sessionNode) {
	if node == s.head {
		return
	}
	s.removeNode(node)
	s.addToHead(node)
}

func (s *Store) evictTail() {
	if s.tail == nil {
		return
	}
	evicted := s.tail.session.ID
	delete(s.items, evicted)
	s.removeNode(s.tail)
	s.evictions++

	s.logger.Debug("session evicted by capacity", zap.String("session_id", evicted))
}
