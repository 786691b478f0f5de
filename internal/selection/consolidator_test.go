package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

var runDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func cand(t *testing.T, id string, origin contracts.Origin, score int, tags ...string) contracts.Candidate {
	t.Helper()
	stop := 95.0
	risk := 5.0
	if origin == contracts.OriginStructural {
		stop, risk = 97.0, 3.0
	}
	c, err := contracts.NewCandidate(contracts.CandidateParams{
		InstrumentID:   id,
		AsOf:           runDate,
		ReferencePrice: 100,
		Origin:         origin,
		Score:          score,
		Tags:           tags,
		StopReference:  &stop,
		RiskPercent:    &risk,
		Attributes:     map[string]interface{}{"seen_by": string(origin)},
	})
	require.NoError(t, err)
	return c
}

func ids(cands []contracts.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.InstrumentID()
	}
	return out
}

func TestConsolidate_MergesSharedInstrument(t *testing.T) {
	momentum := []contracts.Candidate{
		cand(t, "AAA", contracts.OriginMomentum, 75, "T2"),
		cand(t, "BBB", contracts.OriginMomentum, 80, "BREAKOUT"),
	}
	structural := []contracts.Candidate{
		cand(t, "AAA", contracts.OriginStructural, 60, "T1"),
		cand(t, "CCC", contracts.OriginStructural, 75, "VOLUME_SPIKE"),
	}

	out, err := NewConsolidator(0, logger.Nop()).Consolidate(momentum, structural)
	require.NoError(t, err)
	require.Equal(t, []string{"BBB", "AAA", "CCC"}, ids(out))

	merged := out[1]
	assert.Equal(t, contracts.OriginConsolidated, merged.Origin())
	assert.Equal(t, 75, merged.Score())
	assert.True(t, merged.HasAllTags("T1", "T2"))
	assert.Equal(t, []string{"momentum", "structural"}, merged.SourceOrigins())

	// stop/risk는 점수가 높은 기여자(momentum)에서
	stop, _ := merged.StopReference()
	assert.Equal(t, 95.0, stop)
	risk, _ := merged.RiskPercent()
	assert.Equal(t, 5.0, risk)

	score, ok := merged.OriginScore(contracts.OriginStructural)
	require.True(t, ok)
	assert.Equal(t, 60, score)
	dual, _ := merged.Attribute(contracts.AttrDualConfirmed)
	assert.Equal(t, true, dual)

	// 단일 origin 후보는 그대로 통과
	assert.True(t, out[0].Equal(momentum[1]))
	assert.True(t, out[2].Equal(structural[1]))
}

func TestConsolidate_VetoSurvivesMerge(t *testing.T) {
	vetoed, err := contracts.NewCandidate(contracts.CandidateParams{
		InstrumentID:   "JUMP",
		AsOf:           runDate,
		ReferencePrice: 100,
		Origin:         contracts.OriginStructural,
		Score:          0,
		Tags:           []string{"CORPORATE_ACTION", "VOLATILITY_EXPANSION"},
		Attributes:     map[string]interface{}{contracts.AttrVeto: "CORPORATE_ACTION"},
	})
	require.NoError(t, err)

	c := NewConsolidator(0, logger.Nop())
	out, err := c.Consolidate(
		[]contracts.Candidate{
			cand(t, "JUMP", contracts.OriginMomentum, 90, "BREAKOUT"),
			cand(t, "AAA", contracts.OriginMomentum, 70),
		},
		[]contracts.Candidate{vetoed},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "JUMP"}, ids(out))

	jump := out[1]
	assert.Equal(t, contracts.OriginConsolidated, jump.Origin())
	assert.Equal(t, 0, jump.Score())
	assert.True(t, jump.HasAllTags("BREAKOUT", "CORPORATE_ACTION"))
	assert.Equal(t, []string{"CORPORATE_ACTION"}, jump.VetoTags())

	// veto 태그가 있는 후보는 모두 0점
	for _, cand := range out {
		if cand.IsVetoed() {
			assert.Zero(t, cand.Score(), cand.InstrumentID())
		}
	}

	second, err := c.Consolidate(out)
	require.NoError(t, err)
	assert.True(t, second[1].Equal(jump))
}

func TestConsolidate_Idempotent(t *testing.T) {
	c := NewConsolidator(0, logger.Nop())
	first, err := c.Consolidate(
		[]contracts.Candidate{
			cand(t, "AAA", contracts.OriginMomentum, 90, "BREAKOUT"),
			cand(t, "BBB", contracts.OriginMomentum, 70),
			cand(t, "DDD", contracts.OriginMomentum, 70),
		},
		[]contracts.Candidate{
			cand(t, "AAA", contracts.OriginStructural, 90, "VOLUME_SPIKE"),
			cand(t, "CCC", contracts.OriginStructural, 0, "LOW_LIQUIDITY"),
			cand(t, "DDD", contracts.OriginStructural, 65),
		},
	)
	require.NoError(t, err)

	second, err := c.Consolidate(first)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]), "position %d", i)
	}
}

func TestConsolidate_DuplicateFreeAndRanked(t *testing.T) {
	momentum := []contracts.Candidate{
		cand(t, "BBB", contracts.OriginMomentum, 70),
		cand(t, "AAA", contracts.OriginMomentum, 70),
		cand(t, "AAA", contracts.OriginMomentum, 85), // 같은 origin 중복 → 높은 점수
	}
	structural := []contracts.Candidate{
		cand(t, "BBB", contracts.OriginStructural, 60),
		cand(t, "EEE", contracts.OriginStructural, 70),
	}

	out, err := NewConsolidator(0, logger.Nop()).Consolidate(momentum, structural)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "EEE"}, ids(out))
	assert.True(t, contracts.IsRanked(out))
	assert.Equal(t, 85, out[0].Score())

	seen := make(map[string]bool)
	for _, c := range out {
		assert.False(t, seen[c.InstrumentID()], "duplicate %s", c.InstrumentID())
		seen[c.InstrumentID()] = true
	}
}

func TestConsolidate_Limit(t *testing.T) {
	out, err := NewConsolidator(2, logger.Nop()).Consolidate([]contracts.Candidate{
		cand(t, "AAA", contracts.OriginMomentum, 70),
		cand(t, "BBB", contracts.OriginMomentum, 90),
		cand(t, "CCC", contracts.OriginMomentum, 80),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB", "CCC"}, ids(out))
}

func TestConsolidate_Empty(t *testing.T) {
	c := NewConsolidator(10, logger.Nop())

	out, err := c.Consolidate()
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	out, err = c.Consolidate([]contracts.Candidate{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestConsolidate_MixedDatesAreFatal(t *testing.T) {
	other, err := contracts.NewCandidate(contracts.CandidateParams{
		InstrumentID:   "ZZZ",
		AsOf:           runDate.AddDate(0, 0, -1),
		ReferencePrice: 10,
		Origin:         contracts.OriginStructural,
		Score:          70,
	})
	require.NoError(t, err)

	_, err = NewConsolidator(0, logger.Nop()).Consolidate(
		[]contracts.Candidate{cand(t, "AAA", contracts.OriginMomentum, 70)},
		[]contracts.Candidate{other},
	)
	require.Error(t, err)
	kind, _ := contracts.KindOf(err)
	assert.Equal(t, contracts.KindInvariantViolation, kind)
}

func TestDualConfirmedAndByOrigin(t *testing.T) {
	out, err := NewConsolidator(0, logger.Nop()).Consolidate(
		[]contracts.Candidate{cand(t, "AAA", contracts.OriginMomentum, 80), cand(t, "BBB", contracts.OriginMomentum, 75)},
		[]contracts.Candidate{cand(t, "AAA", contracts.OriginStructural, 90)},
	)
	require.NoError(t, err)

	dual := DualConfirmed(out)
	assert.Equal(t, []string{"AAA"}, ids(dual))

	groups := ByOrigin(out)
	assert.Equal(t, []string{"AAA", "BBB"}, ids(groups["momentum"]))
	assert.Equal(t, []string{"AAA"}, ids(groups["structural"]))
}
