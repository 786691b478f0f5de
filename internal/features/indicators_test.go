package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

var asOf = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// flatSeries returns n flat bars (close 100, range 99-101, volume 1000) ending on end
func flatSeries(id string, n int, end time.Time) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = contracts.Bar{
			InstrumentID: id,
			Date:         end.AddDate(0, 0, i-n+1),
			Open:         100,
			High:         101,
			Low:          99,
			Close:        100,
			Volume:       1000,
		}
	}
	return bars
}

// breakoutSeries ends with a gap-up, high-volume bar out of a tight box
func breakoutSeries(id string, n int) []contracts.Bar {
	bars := flatSeries(id, n, asOf)
	bars[n-1].Open = 103
	bars[n-1].High = 111
	bars[n-1].Low = 102
	bars[n-1].Close = 110
	bars[n-1].Volume = 3000
	return bars
}

func TestComputeMomentumWindows(t *testing.T) {
	bars := flatSeries("UP", 30, asOf)
	for i := range bars {
		c := 100 + float64(i)
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = c, c+1, c-1, c
	}

	fv, err := Compute(bars, asOf)
	require.NoError(t, err)
	// 마지막 129, 5봉 구간 시작 125, 20봉 구간 시작 110
	assert.InDelta(t, (129.0/125.0-1)*100, fv.Momentum5D, 1e-9)
	assert.InDelta(t, (129.0/110.0-1)*100, fv.Momentum20D, 1e-9)
}

func TestCompute(t *testing.T) {
	fv, err := Compute(breakoutSeries("AAA", 30), asOf)
	require.NoError(t, err)

	assert.Equal(t, "AAA", fv.InstrumentID)
	assert.Equal(t, asOf, fv.AsOf)
	assert.Equal(t, 100.0, fv.PrevClose)

	assert.InDelta(t, 11.0, fv.TrueRange, 1e-9)
	assert.InDelta(t, 2.45, fv.ATR20, 1e-9)
	assert.InDelta(t, 11.0/2.45, fv.VolatilityRatio, 1e-9)

	assert.InDelta(t, 1000.0, fv.VolumeMA20, 1e-9)
	assert.InDelta(t, 3.0, fv.VolumeRatio, 1e-9)
	assert.InDelta(t, 1.4, fv.VolumeRatio5v20, 1e-9)

	assert.InDelta(t, 10.0, fv.Momentum5D, 1e-9)
	assert.InDelta(t, 10.0, fv.Momentum20D, 1e-9)
	assert.InDelta(t, 100.5, fv.MA20, 1e-9)
	assert.InDelta(t, (110/100.5-1)*100, fv.PriceVsMA20, 1e-9)
	assert.Zero(t, fv.MA60) // 60봉 미만
	assert.False(t, fv.MAStack)

	assert.Equal(t, 111.0, fv.High20)
	assert.Equal(t, 99.0, fv.Low20)
	assert.InDelta(t, 110.0/111.0, fv.CloseToHigh20, 1e-9)
	assert.InDelta(t, 3.0, fv.GapPct, 1e-9)
	assert.InDelta(t, 10.0, fv.Change1DPct, 1e-9)
	assert.InDelta(t, 97.02, fv.SwingStop, 1e-9)
	assert.InDelta(t, (110-97.02)/110*100, fv.StopRiskPct, 1e-9)

	assert.InDelta(t, 100_000.0, fv.DollarVolumeMedian20, 1e-9)
	assert.True(t, fv.SqueezeRelease)
	assert.Greater(t, fv.ReturnVolatility20, 0.0)

	require.NoError(t, fv.Validate())
}

func TestComputeMAStack(t *testing.T) {
	bars := flatSeries("UP", 60, asOf)
	for i := range bars {
		c := 50 + float64(i)
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = c, c+1, c-1, c
	}

	fv, err := Compute(bars, asOf)
	require.NoError(t, err)
	assert.Greater(t, fv.MA60, 0.0)
	assert.True(t, fv.MAStack)
	assert.False(t, fv.SqueezeRelease) // 박스 폭이 넓음
}

func TestComputeNotAvailable(t *testing.T) {
	tests := []struct {
		name string
		bars []contracts.Bar
		asOf time.Time
	}{
		{"too few bars", breakoutSeries("AAA", MinBars-1), asOf},
		{"stale last bar", breakoutSeries("AAA", 40), asOf.AddDate(0, 0, 1)},
		{"empty", nil, asOf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.bars, tt.asOf)
			assert.ErrorIs(t, err, contracts.ErrNotAvailable)
		})
	}
}

func TestPercentiles(t *testing.T) {
	got := Percentiles(map[string]float64{"a": 1, "b": 2, "c": 3})
	assert.Equal(t, map[string]float64{"a": 0, "b": 0.5, "c": 1}, got)

	ties := Percentiles(map[string]float64{"a": 1, "b": 1, "c": 2})
	assert.Equal(t, 0.0, ties["a"])
	assert.Equal(t, 0.0, ties["b"])
	assert.Equal(t, 1.0, ties["c"])

	assert.Equal(t, map[string]float64{"x": 1}, Percentiles(map[string]float64{"x": 5}))
	assert.Empty(t, Percentiles(nil))
}

func TestPreEventBox(t *testing.T) {
	bars := breakoutSeries("AAA", 30)

	high, low, ok := PreEventBox(bars, 29)
	require.True(t, ok)
	assert.Equal(t, 101.0, high)
	assert.Equal(t, 99.0, low)

	_, _, ok = PreEventBox(bars, 10)
	assert.False(t, ok)
}

func TestStopRiskPct(t *testing.T) {
	assert.InDelta(t, 5.0, StopRiskPct(100, 95), 1e-9)
	assert.Zero(t, StopRiskPct(0, 95))
	assert.Zero(t, StopRiskPct(100, 0))
}
