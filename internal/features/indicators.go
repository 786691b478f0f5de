package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// Indicator windows
const (
	MinBars        = 30 // 지표 계산 최소 바 수 (asOf 포함)
	LookbackBars   = 60 // MA60까지 계산하는 조회 길이
	window20       = 20
	window5        = 5
	swingStopRatio = 0.98
	squeezeMaxPct  = 10.0 // 직전 20봉 박스 폭 (%) 이하일 때만 squeeze
)

// Compute derives a FeatureVector from ascending daily bars ending on asOf.
// ⭐ SSOT: 지표 계산은 여기서만 (Scanner는 계산하지 않음)
//
// DollarVolumePctile is cross-sectional and left at 0; the Provider fills it.
func Compute(bars []contracts.Bar, asOf time.Time) (*contracts.FeatureVector, error) {
	n := len(bars)
	if n < MinBars {
		return nil, fmt.Errorf("%w: %d bars, need %d", contracts.ErrNotAvailable, n, MinBars)
	}
	last := bars[n-1]
	if !contracts.TruncateDate(last.Date).Equal(contracts.TruncateDate(asOf)) {
		return nil, fmt.Errorf("%w: last bar %s, want %s", contracts.ErrNotAvailable,
			last.Date.Format(contracts.DateLayout), asOf.Format(contracts.DateLayout))
	}
	prev := bars[n-2]

	fv := &contracts.FeatureVector{
		InstrumentID: last.InstrumentID,
		AsOf:         contracts.TruncateDate(asOf),
		Open:         last.Open,
		High:         last.High,
		Low:          last.Low,
		Close:        last.Close,
		Volume:       last.Volume,
		PrevClose:    prev.Close,
	}

	// Volatility
	fv.TrueRange = trueRange(last, prev.Close)
	fv.ATR20 = atr(bars, window20)
	fv.VolatilityRatio = ratio(fv.TrueRange, fv.ATR20)
	fv.ReturnVolatility20 = returnStdev(bars, window20)

	// Volume: 당일 제외 직전 20일 평균 대비
	fv.VolumeMA20 = avgVolume(bars[n-1-window20 : n-1])
	fv.VolumeRatio = ratio(float64(last.Volume), fv.VolumeMA20)
	fv.VolumeRatio5v20 = ratio(avgVolume(bars[n-window5:]), avgVolume(bars[n-window5-window20:n-window5]))

	// Trend
	// 당일 포함 N봉 구간의 첫 종가 대비 (5봉 → 4봉 전)
	fv.Momentum5D = pctChange(bars[n-window5].Close, last.Close)
	fv.Momentum20D = pctChange(bars[n-window20].Close, last.Close)
	fv.MA5 = avgClose(bars[n-window5:])
	fv.MA20 = avgClose(bars[n-window20:])
	if n >= 60 {
		fv.MA60 = avgClose(bars[n-60:])
		fv.MAStack = last.Close > fv.MA5 && fv.MA5 > fv.MA20 && fv.MA20 > fv.MA60
	}
	fv.PriceVsMA20 = pctChange(fv.MA20, last.Close)

	// Structure
	fv.High20, fv.Low20 = Box(bars[n-window20:])
	fv.CloseToHigh20 = ratio(last.Close, fv.High20)
	fv.GapPct = math.Abs(pctChange(prev.Close, last.Open))
	fv.Change1DPct = math.Abs(pctChange(prev.Close, last.Close))
	fv.SwingStop = SwingStop(fv.Low20)
	fv.StopRiskPct = StopRiskPct(last.Close, fv.SwingStop)

	// Liquidity
	fv.DollarVolumeMedian20 = medianDollarVolume(bars[n-window20:])

	fv.SqueezeRelease = squeezeRelease(bars[n-1-window20:n-1], last)

	return fv, nil
}

// Box returns the highest high and lowest low of the bars
func Box(bars []contracts.Bar) (high, low float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	high, low = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return high, low
}

// PreEventBox returns the 20-bar box before the bar at index i
func PreEventBox(bars []contracts.Bar, i int) (high, low float64, ok bool) {
	if i < window20 || i >= len(bars) {
		return 0, 0, false
	}
	high, low = Box(bars[i-window20 : i])
	return high, low, true
}

// SwingStop is the structural stop: 20-day low minus 2%
func SwingStop(low20 float64) float64 {
	return low20 * swingStopRatio
}

// StopRiskPct returns the distance from close to stop in percent (positive magnitude)
func StopRiskPct(close, stop float64) float64 {
	if close <= 0 || stop <= 0 {
		return 0
	}
	return math.Abs(close-stop) / close * 100
}

// Percentiles ranks values in [0, 1]; ties share the lowest rank
func Percentiles(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	if len(values) == 0 {
		return out
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		for k := range values {
			out[k] = 1.0
		}
		return out
	}
	denom := float64(len(sorted) - 1)
	for k, v := range values {
		rank := sort.SearchFloat64s(sorted, v)
		out[k] = float64(rank) / denom
	}
	return out
}

// === Helper Functions ===

func trueRange(b contracts.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// atr averages the true range of the last period bars
func atr(bars []contracts.Bar, period int) float64 {
	n := len(bars)
	if n < period+1 {
		return 0
	}
	var sum float64
	for i := n - period; i < n; i++ {
		sum += trueRange(bars[i], bars[i-1].Close)
	}
	return sum / float64(period)
}

// returnStdev is the sample stdev of daily % returns over period
func returnStdev(bars []contracts.Bar, period int) float64 {
	n := len(bars)
	if n < period+1 {
		return 0
	}
	returns := make([]float64, 0, period)
	for i := n - period; i < n; i++ {
		returns = append(returns, pctChange(bars[i-1].Close, bars[i].Close))
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss / float64(len(returns)-1))
}

func avgVolume(bars []contracts.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum int64
	for _, b := range bars {
		sum += b.Volume
	}
	return float64(sum) / float64(len(bars))
}

func avgClose(bars []contracts.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(len(bars))
}

func medianDollarVolume(bars []contracts.Bar) float64 {
	dv := make([]float64, len(bars))
	for i, b := range bars {
		dv[i] = b.DollarVolume()
	}
	sort.Float64s(dv)
	m := len(dv)
	if m == 0 {
		return 0
	}
	if m%2 == 1 {
		return dv[m/2]
	}
	return (dv[m/2-1] + dv[m/2]) / 2
}

// squeezeRelease: tight pre-event box, today's close breaks out of it
func squeezeRelease(box []contracts.Bar, today contracts.Bar) bool {
	high, low := Box(box)
	if low <= 0 {
		return false
	}
	if (high-low)/low*100 > squeezeMaxPct {
		return false
	}
	return today.Close > high || today.Close < low
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
