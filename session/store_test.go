package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/cookrag/types"
)

func newTestStore(maxSessions, maxHistory int, ttl time.Duration, contextWindow int) (*Store, *time.Time) {
	s := NewStore(maxSessions, maxHistory, ttl, contextWindow, zap.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(10, 10, time.Hour, 5)

	id := s.Create("u1")
	require.NotEmpty(t, id)

	sess := s.Get(id)
	require.NotNil(t, sess)
	assert.Equal(t, "u1", sess.UserID)
	assert.Empty(t, sess.Messages)

	assert.Nil(t, s.Get("no-such-session"))
	assert.Equal(t, 1, s.ActiveCount())
}

func TestCreate_CapacityEviction(t *testing.T) {
	s, _ := newTestStore(2, 10, time.Hour, 5)

	id1 := s.Create("u1")
	id2 := s.Create("u2")

	// 触碰 id1，让 id2 变为最久未触碰
	require.NotNil(t, s.Get(id1))

	id3 := s.Create("u3")

	assert.Equal(t, 2, s.ActiveCount())
	assert.Nil(t, s.Get(id2), "least-recently-touched session evicted")
	assert.NotNil(t, s.Get(id1))
	assert.NotNil(t, s.Get(id3))
	assert.Equal(t, int64(1), s.Evictions())
}

func TestGet_TTLExpiry(t *testing.T) {
	s, now := newTestStore(10, 10, time.Hour, 5)
	id := s.Create("u1")

	*now = now.Add(time.Hour + time.Second)
	assert.Nil(t, s.Get(id))
	assert.Zero(t, s.ActiveCount(), "expired session removed on access")
}

func TestGet_DoesNotRefreshUpdatedAt(t *testing.T) {
	s, now := newTestStore(10, 10, time.Hour, 5)
	id := s.Create("u1")

	// 每 40 分钟读一次，读不续命，第二次读时已超过 TTL
	*now = now.Add(40 * time.Minute)
	require.NotNil(t, s.Get(id))

	*now = now.Add(40 * time.Minute)
	assert.Nil(t, s.Get(id), "idle reads must not extend session life")
}

func TestAddMessage_RefreshesUpdatedAt(t *testing.T) {
	s, now := newTestStore(10, 10, time.Hour, 5)
	id := s.Create("u1")

	*now = now.Add(40 * time.Minute)
	require.True(t, s.AddMessage(id, types.RoleUser, "问题", nil))

	*now = now.Add(40 * time.Minute)
	assert.NotNil(t, s.Get(id), "AddMessage extends session life")
}

func TestAddMessage_MissingOrExpired(t *testing.T) {
	s, now := newTestStore(10, 10, time.Hour, 5)
	assert.False(t, s.AddMessage("ghost", types.RoleUser, "x", nil))

	id := s.Create("u1")
	*now = now.Add(2 * time.Hour)
	assert.False(t, s.AddMessage(id, types.RoleUser, "x", nil))
}

func TestAddMessage_PairedTrimming(t *testing.T) {
	s, _ := newTestStore(10, 2, time.Hour, 5)
	id := s.Create("u1")

	for i := 0; i < 4; i++ {
		require.True(t, s.AddMessage(id, types.RoleUser, fmt.Sprintf("q%d", i), nil))
		require.True(t, s.AddMessage(id, types.RoleAssistant, fmt.Sprintf("a%d", i), nil))
	}

	sess := s.Get(id)
	require.NotNil(t, sess)
	require.Len(t, sess.Messages, 4, "capped at 2×maxHistory")
	// 最旧的轮次成对丢弃，剩下 q2/a2/q3/a3，角色交替保持
	assert.Equal(t, "q2", sess.Messages[0].Content)
	assert.Equal(t, types.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "a3", sess.Messages[3].Content)
	assert.Equal(t, types.RoleAssistant, sess.Messages[3].Role)
}

func TestAddMessage_TrimReleasesBacking(t *testing.T) {
	s, _ := newTestStore(10, 2, time.Hour, 5)
	id := s.Create("u1")

	for i := 0; i < 2; i++ {
		require.True(t, s.AddMessage(id, types.RoleUser, fmt.Sprintf("q%d", i), nil))
		require.True(t, s.AddMessage(id, types.RoleAssistant, fmt.Sprintf("a%d", i), nil))
	}
	// 第 5 条触发裁剪
	require.True(t, s.AddMessage(id, types.RoleUser, "q2", nil))

	// 裁剪后切片换了新底层数组，不再引用被丢弃的消息
	msgs := s.items[id].session.Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, len(msgs), cap(msgs))
	assert.Equal(t, "q1", msgs[0].Content)
}

func TestGetContext_DropsTrailingUserMessage(t *testing.T) {
	s, _ := newTestStore(10, 10, time.Hour, 1)
	id := s.Create("u1")

	s.AddMessage(id, types.RoleUser, "A", nil)
	s.AddMessage(id, types.RoleAssistant, "B", nil)
	s.AddMessage(id, types.RoleUser, "C", nil)

	// 在途问题先排除，窗口仍回看一整轮
	assert.Equal(t, "用户: A\n助手: B", s.GetContext(id, false))

	// 历史更长时窗口取排除后的最近一轮
	s.AddMessage(id, types.RoleAssistant, "D", nil)
	s.AddMessage(id, types.RoleUser, "E", nil)
	assert.Equal(t, "用户: C\n助手: D", s.GetContext(id, false))
}

func TestGetContext_IncludeCurrent(t *testing.T) {
	s, _ := newTestStore(10, 10, time.Hour, 2)
	id := s.Create("u1")

	s.AddMessage(id, types.RoleUser, "A", nil)
	s.AddMessage(id, types.RoleAssistant, "B", nil)
	s.AddMessage(id, types.RoleUser, "C", nil)

	assert.Equal(t, "用户: A\n助手: B\n用户: C", s.GetContext(id, true))
}

func TestGetContext_WindowLimit(t *testing.T) {
	s, _ := newTestStore(10, 10, time.Hour, 1)
	id := s.Create("u1")

	s.AddMessage(id, types.RoleUser, "老问题", nil)
	s.AddMessage(id, types.RoleAssistant, "老回答", nil)
	s.AddMessage(id, types.RoleUser, "新问题", nil)
	s.AddMessage(id, types.RoleAssistant, "新回答", nil)

	// 窗口只回看一轮（2 条消息）
	assert.Equal(t, "用户: 新问题\n助手: 新回答", s.GetContext(id, true))
}

func TestGetContext_EmptyCases(t *testing.T) {
	s, now := newTestStore(10, 10, time.Hour, 5)

	assert.Empty(t, s.GetContext("ghost", false))

	id := s.Create("u1")
	assert.Empty(t, s.GetContext(id, false), "empty session renders empty context")

	s.AddMessage(id, types.RoleUser, "唯一的在途问题", nil)
	assert.Empty(t, s.GetContext(id, false))

	*now = now.Add(2 * time.Hour)
	assert.Empty(t, s.GetContext(id, true), "expired session renders empty context")
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(10, 10, time.Hour, 5)
	id := s.Create("u1")

	assert.True(t, s.Delete(id))
	assert.False(t, s.Delete(id))
	assert.Nil(t, s.Get(id))
}

func TestSweepExpired(t *testing.T) {
	s, now := newTestStore(10, 10, time.Hour, 5)
	s.Create("u1")
	s.Create("u2")

	*now = now.Add(2 * time.Hour)
	fresh := s.Create("u3")

	assert.Equal(t, 2, s.SweepExpired())
	assert.Equal(t, 1, s.ActiveCount())
	assert.NotNil(t, s.Get(fresh))
}

// 配对不变式：任意追加序列后消息数不超过 2×maxHistory，
// 且裁剪总是从头部成对进行，交替的 user/assistant 序列保持交替。
func TestProperty_MessagesStayPaired(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHistory := rapid.IntRange(1, 5).Draw(rt, "maxHistory")
		turns := rapid.IntRange(0, 30).Draw(rt, "turns")

		s, _ := newTestStore(10, maxHistory, time.Hour, 5)
		id := s.Create("u1")

		for i := 0; i < turns; i++ {
			s.AddMessage(id, types.RoleUser, fmt.Sprintf("q%d", i), nil)
			s.AddMessage(id, types.RoleAssistant, fmt.Sprintf("a%d", i), nil)
		}

		sess := s.Get(id)
		if sess == nil {
			rt.Fatalf("session vanished")
		}
		if len(sess.Messages) > 2*maxHistory {
			rt.Fatalf("message count %d exceeds bound %d", len(sess.Messages), 2*maxHistory)
		}
		for i, msg := range sess.Messages {
			want := types.RoleUser
			if i%2 == 1 {
				want = types.RoleAssistant
			}
			if msg.Role != want {
				rt.Fatalf("alternation broken at %d: got %s", i, msg.Role)
			}
		}
	})
}
