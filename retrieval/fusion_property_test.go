package retrieval

import (
	"context"
	"fmt"
	"math"
	"testing"

	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/cookrag/types"
)

// 融合确定性：相同输入列表多次 Search 返回完全相同的顺序。
func TestProperty_FusionDeterminism(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vectorCount := rapid.IntRange(0, 20).Draw(rt, "vectorCount")
		lexicalCount := rapid.IntRange(0, 20).Draw(rt, "lexicalCount")

		var vectorHits, lexicalHits []types.Fragment
		for i := 0; i < vectorCount; i++ {
			text := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, fmt.Sprintf("vtext_%d", i))
			vectorHits = append(vectorHits, frag(fmt.Sprintf("v%d", i), text))
		}
		for i := 0; i < lexicalCount; i++ {
			text := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, fmt.Sprintf("ltext_%d", i))
			lexicalHits = append(lexicalHits, frag(fmt.Sprintf("l%d", i), text))
		}

		r := NewHybridRetriever(DefaultConfig(),
			&stubEngine{name: "vector", hits: vectorHits},
			&stubEngine{name: "lexical", hits: lexicalHits},
			zap.NewNop())

		first, err := r.Search(context.Background(), "q", 50)
		if err != nil {
			rt.Fatalf("search failed: %v", err)
		}
		for run := 0; run < 3; run++ {
			again, err := r.Search(context.Background(), "q", 50)
			if err != nil {
				rt.Fatalf("repeated search failed: %v", err)
			}
			if len(again) != len(first) {
				rt.Fatalf("result length changed between runs: %d vs %d", len(again), len(first))
			}
			for i := range first {
				if again[i].ID != first[i].ID {
					rt.Fatalf("order changed at position %d: %s vs %s", i, again[i].ID, first[i].ID)
				}
			}
		}
	})
}

// 融合得分律：向量列表第 r1 名、词法列表第 r2 名的片段，
// 融合得分恰为 1/(k+r1) + 1/(k+r2)；只出现在一侧则只有那一项。
func TestProperty_FusionScoreLaw(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(1, 100).Draw(rt, "k")
		r1 := rapid.IntRange(1, 10).Draw(rt, "r1")
		r2 := rapid.IntRange(1, 10).Draw(rt, "r2")

		// 构造两个列表，目标片段 "shared" 位于向量第 r1 名、词法第 r2 名，
		// 其余位置用互不相同的填充片段占位。
		var vectorHits, lexicalHits []types.Fragment
		for i := 1; i <= r1; i++ {
			if i == r1 {
				vectorHits = append(vectorHits, frag("shared-v", "shared"))
			} else {
				vectorHits = append(vectorHits, frag(fmt.Sprintf("vf%d", i), fmt.Sprintf("vfill%d", i)))
			}
		}
		for i := 1; i <= r2; i++ {
			if i == r2 {
				lexicalHits = append(lexicalHits, frag("shared-l", "shared"))
			} else {
				lexicalHits = append(lexicalHits, frag(fmt.Sprintf("lf%d", i), fmt.Sprintf("lfill%d", i)))
			}
		}

		cfg := DefaultConfig()
		cfg.RRFK = k
		r := NewHybridRetriever(cfg,
			&stubEngine{name: "vector", hits: vectorHits},
			&stubEngine{name: "lexical", hits: lexicalHits},
			zap.NewNop())

		fused := r.fuse(vectorHits, lexicalHits)

		sharedHash := frag("", "shared").ContentHash()
		// 重新计算每个排名单位的得分，验证目标片段符合得分律
		scores := make(map[uint64]float64)
		for i, f := range vectorHits {
			scores[f.ContentHash()] += 1.0 / float64(k+i+1)
		}
		for i, f := range lexicalHits {
			scores[f.ContentHash()] += 1.0 / float64(k+i+1)
		}

		want := 1.0/float64(k+r1) + 1.0/float64(k+r2)
		if math.Abs(scores[sharedHash]-want) > 1e-12 {
			rt.Fatalf("score law violated: got %v want %v", scores[sharedHash], want)
		}

		// 融合结果的顺序必须与得分降序一致（同分按首次出现）
		for i := 1; i < len(fused); i++ {
			if scores[fused[i-1].ContentHash()] < scores[fused[i].ContentHash()] {
				rt.Fatalf("fused order not descending at %d", i)
			}
		}
	})
}
