package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/strategyconfig"
	"github.com/wonny/aegis/v13/screener/internal/taxonomy"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

var scanDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// fakeProvider serves canned feature vectors
type fakeProvider struct {
	features map[string]*contracts.FeatureVector
	errs     map[string]error
	block    map[string]bool // ctx 만료까지 대기
	calls    atomic.Int64
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		features: make(map[string]*contracts.FeatureVector),
		errs:     make(map[string]error),
		block:    make(map[string]bool),
	}
}

func (f *fakeProvider) add(fvs ...*contracts.FeatureVector) *fakeProvider {
	for _, fv := range fvs {
		f.features[fv.InstrumentID] = fv
	}
	return f
}

func (f *fakeProvider) Refresh(ctx context.Context, asOf time.Time) (*contracts.DataSnapshot, error) {
	return &contracts.DataSnapshot{Date: asOf, TotalInstruments: len(f.features), CoveredInstruments: len(f.features)}, nil
}

func (f *fakeProvider) ListInstruments(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.features))
	for id := range f.features {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeProvider) GetFeatures(ctx context.Context, id string, asOf time.Time) (*contracts.FeatureVector, error) {
	f.calls.Add(1)
	if f.block[id] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	fv, ok := f.features[id]
	if !ok {
		return nil, contracts.ErrNotAvailable
	}
	cp := *fv
	return &cp, nil
}

func quietFV(id string) *contracts.FeatureVector {
	return &contracts.FeatureVector{
		InstrumentID:         id,
		Close:                50,
		Volume:               1_000_000,
		VolatilityRatio:      1,
		VolumeRatio:          1,
		StopRiskPct:          12,
		SwingStop:            44,
		CloseToHigh20:        0.9,
		DollarVolumeMedian20: 50_000_000,
		DollarVolumePctile:   0.5,
	}
}

// anomalyFV matches the three structural tags only
func anomalyFV(id string) *contracts.FeatureVector {
	fv := quietFV(id)
	fv.VolatilityRatio = 2.5
	fv.VolumeRatio = 2.0
	fv.StopRiskPct = 4
	fv.SwingStop = 48
	return fv
}

func momentumFV(id string, m20, vr, cth, m5, vol float64) *contracts.FeatureVector {
	return &contracts.FeatureVector{
		InstrumentID:         id,
		Close:                100,
		Volume:               1_000_000,
		Momentum20D:          m20,
		VolumeRatio5v20:      vr,
		CloseToHigh20:        cth,
		Momentum5D:           m5,
		ReturnVolatility20:   vol,
		PriceVsMA20:          3,
		DollarVolumeMedian20: 100_000_000,
	}
}

func loadStrategy(t *testing.T) *strategyconfig.Config {
	t.Helper()
	cfg, _, err := strategyconfig.LoadDefault()
	require.NoError(t, err)
	return cfg
}

func newStructural(t *testing.T, p contracts.FeatureProvider) *Structural {
	cfg := loadStrategy(t)
	return NewStructural(cfg.Structural, taxonomy.NewEngine(cfg.Taxonomy), p, logger.Nop())
}

func newMomentum(t *testing.T, p contracts.FeatureProvider) *Momentum {
	cfg := loadStrategy(t)
	return NewMomentum(cfg.Momentum, taxonomy.NewEngine(cfg.Taxonomy), p, logger.Nop())
}

func ids(cands []contracts.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.InstrumentID()
	}
	return out
}

func TestStructuralScenario(t *testing.T) {
	p := newFakeProvider().add(anomalyFV("AAA"), anomalyFV("BBB"), quietFV("CCC"))
	p.features["BBB"].DollarVolumeMedian20 = 500_000 // LOW_LIQUIDITY veto

	s := newStructural(t, p)
	stats := contracts.NewRunStats()
	out, err := s.Scan(context.Background(), contracts.NewBatch(scanDate, []string{"AAA", "BBB", "CCC"}),
		s.DefaultMinScore(), s.DefaultLimit(), contracts.ScanOptions{Workers: 2, Stats: stats})
	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "BBB"}, ids(out))

	a := out[0]
	assert.Equal(t, 90, a.Score())
	assert.Equal(t, contracts.OriginStructural, a.Origin())
	assert.Equal(t, []string{"CLEAR_STRUCTURE", "VOLATILITY_EXPANSION", "VOLUME_SPIKE"}, a.Tags())
	stop, ok := a.StopReference()
	require.True(t, ok)
	assert.Equal(t, 48.0, stop)
	risk, ok := a.RiskPercent()
	require.True(t, ok)
	assert.Equal(t, 4.0, risk)

	// veto: 점수 0이지만 출력에 남음
	b := out[1]
	assert.Equal(t, 0, b.Score())
	assert.True(t, b.HasTag("LOW_LIQUIDITY"))
	veto, _ := b.Attribute(contracts.AttrVeto)
	assert.Equal(t, "LOW_LIQUIDITY", veto)

	snap := stats.Snapshot()
	assert.Equal(t, 3, snap.InstrumentsScanned)
	assert.Equal(t, 2, snap.ProducedByOrigin[contracts.OriginStructural])
	assert.Empty(t, snap.Errors)
}

func TestMomentumScoring(t *testing.T) {
	p := newFakeProvider().add(
		momentumFV("FULL", 25, 2.5, 1.0, 4, 3),      // 40+25+20+15 = 100
		momentumFV("PENALIZED", 25, 2.5, 1.0, 4, 6), // 100-10 = 90
		momentumFV("MID", 12, 1.6, 0.95, 1, 2),      // 25+15+0+8 = 48
		momentumFV("WEAK", 4, 2.5, 1.0, 4, 3),       // momentum_20d < 5 → 필터
	)
	s := newMomentum(t, p)
	batch := contracts.NewBatch(scanDate, []string{"FULL", "PENALIZED", "MID", "WEAK"})

	out, err := s.Scan(context.Background(), batch, 0, 0, contracts.ScanOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"FULL", "PENALIZED", "MID"}, ids(out))
	assert.Equal(t, []int{100, 90, 48}, []int{out[0].Score(), out[1].Score(), out[2].Score()})

	full := out[0]
	assert.Equal(t, contracts.OriginMomentum, full.Origin())
	assert.Equal(t, []string{"BREAKOUT", "MOMENTUM_CONFIRM", "VOLUME_SPIKE"}, full.Tags())
	stop, _ := full.StopReference()
	assert.InDelta(t, 95.0, stop, 1e-9)
	risk, _ := full.RiskPercent()
	assert.Equal(t, 5.0, risk)
	bucket, _ := full.Attribute("bucket.trend")
	assert.Equal(t, 40, bucket)

	penalty, _ := out[1].Attribute("penalty.volatility")
	assert.Equal(t, 10, penalty)

	// min_score 기본값 70, limit 1
	out, err = s.Scan(context.Background(), batch, s.DefaultMinScore(), 1, contracts.ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FULL"}, ids(out))
}

func TestMomentumHonorsTaxonomyVeto(t *testing.T) {
	jump := momentumFV("JUMP", 70, 2.5, 1.0, 4, 3)
	jump.Change1DPct = 60 // CORPORATE_ACTION
	p := newFakeProvider().add(jump, momentumFV("FULL", 25, 2.5, 1.0, 4, 3))

	s := newMomentum(t, p)
	out, err := s.Scan(context.Background(), contracts.NewBatch(scanDate, []string{"JUMP", "FULL"}),
		s.DefaultMinScore(), 0, contracts.ScanOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"FULL", "JUMP"}, ids(out))

	// veto: min_score 미만이어도 점수 0으로 출력
	vetoed := out[1]
	assert.Equal(t, 0, vetoed.Score())
	assert.True(t, vetoed.HasTag("CORPORATE_ACTION"))
	assert.True(t, vetoed.IsVetoed())
	assert.Equal(t, []string{"CORPORATE_ACTION"}, vetoed.VetoTags())
}

func TestScanTieBreakByInstrumentID(t *testing.T) {
	p := newFakeProvider().add(
		momentumFV("ZZZ", 25, 2.5, 1.0, 4, 3),
		momentumFV("AAA", 25, 2.5, 1.0, 4, 3),
		momentumFV("MMM", 25, 2.5, 1.0, 4, 3),
	)
	out, err := newMomentum(t, p).Scan(context.Background(),
		contracts.NewBatch(scanDate, []string{"ZZZ", "MMM", "AAA", "AAA"}), 70, 0, contracts.ScanOptions{Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, ids(out)) // 중복 입력도 한 번만
	assert.True(t, contracts.IsRanked(out))
}

func TestScanDeterministic(t *testing.T) {
	p := newFakeProvider()
	batchIDs := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("I%03d", i)
		batchIDs = append(batchIDs, id)
		fv := anomalyFV(id)
		switch i % 4 {
		case 1:
			fv.GapPct = 2
		case 2:
			fv.VolumeRatio = 1 // 60점
		case 3:
			fv.Close = 4 // veto
		}
		p.add(fv)
	}
	s := newStructural(t, p)
	batch := contracts.NewBatch(scanDate, batchIDs)

	encode := func(workers int) string {
		out, err := s.Scan(context.Background(), batch, 60, 0, contracts.ScanOptions{Workers: workers})
		require.NoError(t, err)
		data, err := json.Marshal(out)
		require.NoError(t, err)
		return string(data)
	}

	first := encode(1)
	for _, w := range []int{1, 4, 16} {
		assert.Equal(t, first, encode(w), "workers=%d", w)
	}
}

func TestScanEmptyBatch(t *testing.T) {
	p := newFakeProvider()
	for _, s := range []contracts.Scanner{newMomentum(t, p), newStructural(t, p)} {
		out, err := s.Scan(context.Background(), contracts.NewBatch(scanDate, nil), 0, 10, contracts.ScanOptions{})
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	}
	assert.Zero(t, p.calls.Load())
}

func TestScanSoftErrors(t *testing.T) {
	p := newFakeProvider().add(anomalyFV("AAA"), anomalyFV("BAD"))
	p.features["BAD"].Close = 0 // malformed
	p.errs["ERR"] = fmt.Errorf("bar source unavailable")

	stats := contracts.NewRunStats()
	out, err := newStructural(t, p).Scan(context.Background(),
		contracts.NewBatch(scanDate, []string{"AAA", "BAD", "ERR", "MISSING"}), 60, 0,
		contracts.ScanOptions{Workers: 2, Stats: stats})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, ids(out))

	snap := stats.Snapshot()
	assert.Equal(t, 4, snap.InstrumentsScanned)
	require.Len(t, snap.Errors, 3)
	assert.Equal(t, 3, snap.CountErrors(contracts.KindDataUnavailable))
	assert.Equal(t, []string{"BAD", "ERR", "MISSING"},
		[]string{snap.Errors[0].InstrumentID, snap.Errors[1].InstrumentID, snap.Errors[2].InstrumentID})
}

func TestScanTimeoutKeepsPartialResults(t *testing.T) {
	p := newFakeProvider().add(anomalyFV("AAA"), anomalyFV("BBB"), anomalyFV("SLOW"), anomalyFV("ZZZ"))
	p.block["SLOW"] = true

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	stats := contracts.NewRunStats()
	out, err := newStructural(t, p).Scan(ctx,
		contracts.NewBatch(scanDate, []string{"AAA", "BBB", "SLOW", "ZZZ"}), 60, 0,
		contracts.ScanOptions{Workers: 1, Stats: stats})
	require.NoError(t, err, "timeout is a soft error")
	assert.Equal(t, []string{"AAA", "BBB"}, ids(out))

	snap := stats.Snapshot()
	assert.Equal(t, 2, snap.InstrumentsScanned)
	require.Equal(t, 1, snap.CountErrors(contracts.KindTimeoutExceeded))
	assert.Contains(t, snap.Errors[0].Message, "2 of 4 instruments evaluated")
}

func TestScanRejectsBadThresholds(t *testing.T) {
	s := newMomentum(t, newFakeProvider())
	batch := contracts.NewBatch(scanDate, []string{"AAA"})

	_, err := s.Scan(context.Background(), batch, 101, 0, contracts.ScanOptions{})
	kind, ok := contracts.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, contracts.KindConfiguration, kind)

	_, err = s.Scan(context.Background(), batch, 50, -1, contracts.ScanOptions{})
	assert.True(t, contracts.IsFatal(err))
}

func TestPoolInvariantViolationIsFatal(t *testing.T) {
	p := newFakeProvider().add(quietFV("AAA"), quietFV("BBB"))
	pl := pool{origin: contracts.OriginStructural, provider: p, logger: logger.Nop()}

	_, err := pl.run(context.Background(), contracts.NewBatch(scanDate, []string{"AAA", "BBB"}), 0, 0,
		contracts.ScanOptions{}, func(fv *contracts.FeatureVector) (evaluation, bool) {
			return evaluation{params: contracts.CandidateParams{ReferencePrice: fv.Close, Score: 150}}, true
		})
	require.Error(t, err)
	kind, _ := contracts.KindOf(err)
	assert.Equal(t, contracts.KindInvariantViolation, kind)
}
