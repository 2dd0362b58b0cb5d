package retrieval

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func equalWeights() map[BackendTag]float64 {
	return map[BackendTag]float64{
		BackendVector:   1.0,
		BackendLexical:  1.0,
		BackendSemantic: 1.0,
		BackendGraph:    1.0,
	}
}

func rankedList(tag BackendTag, ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{
			ID:      id,
			Backend: tag,
			Text:    "text for " + id,
			Rank:    i + 1,
		}
	}
	return out
}

// 高血压症状示例: vector=[A,B,C], lexical=[B,D], 等权, k=60
func TestFuser_HypertensionExample(t *testing.T) {
	fuser := NewFuser(DefaultFuserConfig(), nil)

	lists := map[BackendTag][]Candidate{
		BackendVector:  rankedList(BackendVector, "A", "B", "C"),
		BackendLexical: rankedList(BackendLexical, "B", "D"),
	}

	fused := fuser.Fuse(lists, equalWeights(), 3)
	require.Len(t, fused, 4)

	ids := []string{fused[0].ID, fused[1].ID, fused[2].ID, fused[3].ID}
	assert.Equal(t, []string{"B", "A", "D", "C"}, ids)

	// B = 1/(60+2) + 1/(60+1), A = 1/61, D = 1/62, C = 1/63
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].FusedScore, 1e-12)
	assert.InDelta(t, 1.0/61, fused[1].FusedScore, 1e-12)
	assert.InDelta(t, 1.0/62, fused[2].FusedScore, 1e-12)
	assert.InDelta(t, 1.0/63, fused[3].FusedScore, 1e-12)

	// B merged from two backends with union provenance
	assert.ElementsMatch(t, []BackendTag{BackendVector, BackendLexical}, fused[0].Backends)
	assert.Equal(t, 1, fused[0].BackendRanks[BackendLexical])
	assert.Equal(t, 2, fused[0].BackendRanks[BackendVector])

	// 1-based fused ranks
	for i, fc := range fused {
		assert.Equal(t, i+1, fc.FusedRank)
	}
}

func TestFuser_WeightedContribution(t *testing.T) {
	fuser := NewFuser(DefaultFuserConfig(), nil)

	lists := map[BackendTag][]Candidate{
		BackendVector:  rankedList(BackendVector, "A"),
		BackendLexical: rankedList(BackendLexical, "B"),
	}
	weights := map[BackendTag]float64{BackendVector: 0.9, BackendLexical: 0.1}

	fused := fuser.Fuse(lists, weights, 10)
	require.Len(t, fused, 2)
	assert.Equal(t, "A", fused[0].ID)
	assert.InDelta(t, 0.9/61, fused[0].FusedScore, 1e-12)
	assert.InDelta(t, 0.1/61, fused[1].FusedScore, 1e-12)
}

func TestFuser_TieBreakByBackendCount(t *testing.T) {
	fuser := NewFuser(FuserConfig{K: 60, LimitFactor: 5}, nil)

	// X appears in two backends, Y in one; weights arranged so the
	// fused scores are exactly equal.
	lists := map[BackendTag][]Candidate{
		BackendVector:   rankedList(BackendVector, "X"),
		BackendLexical:  rankedList(BackendLexical, "X"),
		BackendSemantic: rankedList(BackendSemantic, "Y"),
	}
	weights := map[BackendTag]float64{
		BackendVector:   0.5,
		BackendLexical:  0.5,
		BackendSemantic: 1.0,
	}

	fused := fuser.Fuse(lists, weights, 10)
	require.Len(t, fused, 2)
	require.Equal(t, fused[0].FusedScore, fused[1].FusedScore)
	assert.Equal(t, "X", fused[0].ID, "equal score resolved by backend count")
}

func TestFuser_TieBreakByInsertionOrder(t *testing.T) {
	fuser := NewFuser(DefaultFuserConfig(), nil)

	// Same backend, same rank in two separate lists is impossible, so
	// use two single-entry backends with equal weight: equal score,
	// equal backend count, equal best rank.
	lists := map[BackendTag][]Candidate{
		BackendVector:  rankedList(BackendVector, "first"),
		BackendLexical: rankedList(BackendLexical, "second"),
	}

	fused := fuser.Fuse(lists, equalWeights(), 10)
	require.Len(t, fused, 2)
	// vector precedes lexical in declaration order, so "first" was inserted first
	assert.Equal(t, "first", fused[0].ID)
	assert.Equal(t, "second", fused[1].ID)
}

func TestFuser_CapAtLimitFactor(t *testing.T) {
	fuser := NewFuser(FuserConfig{K: 60, LimitFactor: 2}, nil)

	ids := make([]string, 30)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%02d", i)
	}
	lists := map[BackendTag][]Candidate{
		BackendVector: rankedList(BackendVector, ids...),
	}

	fused := fuser.Fuse(lists, equalWeights(), 3)
	assert.Len(t, fused, 6) // 2 * top_k
}

func TestFuser_MissingIDFallsBackToTextKey(t *testing.T) {
	fuser := NewFuser(DefaultFuserConfig(), nil)

	lists := map[BackendTag][]Candidate{
		BackendVector:  {{Backend: BackendVector, Text: "高血压常见症状包括头痛", Rank: 1}},
		BackendLexical: {{Backend: BackendLexical, Text: "高血压常见症状包括头痛", Rank: 1}},
	}

	fused := fuser.Fuse(lists, equalWeights(), 10)
	require.Len(t, fused, 1, "identical text without IDs merges into one candidate")
	assert.Len(t, fused[0].Backends, 2)
}

func TestFuser_EmptyInput(t *testing.T) {
	fuser := NewFuser(DefaultFuserConfig(), nil)
	fused := fuser.Fuse(map[BackendTag][]Candidate{}, equalWeights(), 5)
	assert.Empty(t, fused)
}

// QQ 属性测试 QQ

// 单调性: 相同单路排名下，后端覆盖是另一个严格超集的候选融合分不更低
func TestFuser_MonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rank := rapid.IntRange(1, 20).Draw(t, "rank")
		nMore := rapid.IntRange(2, 4).Draw(t, "backends_more")
		nFewer := rapid.IntRange(1, nMore-1).Draw(t, "backends_fewer")

		lists := make(map[BackendTag][]Candidate)
		for i, tag := range backendOrder {
			var row []Candidate
			// pad with filler so both candidates land at the same rank
			for r := 1; r < rank; r++ {
				row = append(row, Candidate{ID: fmt.Sprintf("pad-%s-%d", tag, r), Rank: r})
			}
			if i < nMore {
				more := Candidate{ID: "more", Rank: rank}
				row = append(row, more)
			}
			if i < nFewer {
				// same rank for the fewer-backend candidate requires a
				// separate padding slot; put it one past.
				row = append(row, Candidate{ID: "fewer", Rank: rank})
			}
			lists[tag] = row
		}

		fuser := NewFuser(DefaultFuserConfig(), nil)
		fused := fuser.Fuse(lists, equalWeights(), 100)

		var moreScore, fewerScore float64
		for _, fc := range fused {
			switch fc.ID {
			case "more":
				moreScore = fc.FusedScore
			case "fewer":
				fewerScore = fc.FusedScore
			}
		}
		if moreScore < fewerScore {
			t.Fatalf("candidate in %d backends scored %v below candidate in %d backends %v",
				nMore, moreScore, nFewer, fewerScore)
		}
	})
}

// 幂等性: 同一输入融合两次得到完全相同的有序输出
func TestFuser_IdempotenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fuser := NewFuser(DefaultFuserConfig(), nil)

		idGen := rapid.StringMatching(`c[0-9]{1,2}`)
		lists := make(map[BackendTag][]Candidate)
		for _, tag := range backendOrder {
			n := rapid.IntRange(0, 10).Draw(t, "n_"+string(tag))
			seen := make(map[string]bool)
			var row []Candidate
			for len(row) < n {
				id := idGen.Draw(t, "id_"+string(tag))
				if seen[id] {
					continue
				}
				seen[id] = true
				row = append(row, Candidate{ID: id, Rank: len(row) + 1, Text: "t-" + id})
			}
			lists[tag] = row
		}
		topK := rapid.IntRange(1, 10).Draw(t, "top_k")

		first := fuser.Fuse(lists, equalWeights(), topK)
		second := fuser.Fuse(lists, equalWeights(), topK)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
			assert.Equal(t, first[i].FusedRank, second[i].FusedRank)
			if math.Abs(first[i].FusedScore-second[i].FusedScore) > 1e-15 {
				t.Fatalf("scores differ at %d", i)
			}
		}
	})
}
