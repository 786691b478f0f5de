package contracts

import (
	"math"
	"time"
)

// FeatureVector is the precomputed per-instrument/date feature set
// ⭐ SSOT: Feature Provider → Scanner 전달 (Scanner는 지표를 직접 계산하지 않음)
//
// Percent fields are expressed in percent (5.0 == 5%), ratios as plain ratios.
type FeatureVector struct {
	InstrumentID string    `json:"instrument_id"`
	AsOf         time.Time `json:"as_of_date"`

	// 당일 시세
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	PrevClose float64 `json:"prev_close"`

	// Volatility
	TrueRange          float64 `json:"true_range"`
	ATR20              float64 `json:"atr20"`
	VolatilityRatio    float64 `json:"volatility_ratio"` // TR / ATR20
	ReturnVolatility20 float64 `json:"return_volatility_20d"`

	// Volume
	VolumeMA20      float64 `json:"volume_ma20"`
	VolumeRatio     float64 `json:"volume_ratio"`      // volume / MA20
	VolumeRatio5v20 float64 `json:"volume_ratio_5v20"` // 최근 5일 평균 / 직전 20일 평균

	// Trend
	Momentum5D  float64 `json:"momentum_5d"`
	Momentum20D float64 `json:"momentum_20d"`
	MA5         float64 `json:"ma5"`
	MA20        float64 `json:"ma20"`
	MA60        float64 `json:"ma60"`
	MAStack     bool    `json:"ma_stack"` // close > MA5 > MA20 > MA60
	PriceVsMA20 float64 `json:"price_vs_ma20"`

	// Structure
	High20        float64 `json:"high20"`
	Low20         float64 `json:"low20"`
	CloseToHigh20 float64 `json:"close_to_high20"`
	GapPct        float64 `json:"gap_pct"`       // |open - prev close| / prev close
	Change1DPct   float64 `json:"change_1d_pct"` // |close - prev close| / prev close
	SwingStop     float64 `json:"swing_stop"`
	StopRiskPct   float64 `json:"stop_risk_pct"`

	// Liquidity
	DollarVolumeMedian20 float64 `json:"dollar_volume_median20"`
	DollarVolumePctile   float64 `json:"dollar_volume_pctile"` // 0.0 ~ 1.0

	SqueezeRelease bool `json:"squeeze_release"`
}

// Feature names usable in taxonomy conditions
const (
	FeatureClose                = "close"
	FeatureVolume               = "volume"
	FeatureVolatilityRatio      = "volatility_ratio"
	FeatureReturnVolatility20   = "return_volatility_20d"
	FeatureVolumeRatio          = "volume_ratio"
	FeatureVolumeRatio5v20      = "volume_ratio_5v20"
	FeatureMomentum5D           = "momentum_5d"
	FeatureMomentum20D          = "momentum_20d"
	FeatureMAStack              = "ma_stack"
	FeaturePriceVsMA20          = "price_vs_ma20"
	FeatureCloseToHigh20        = "close_to_high20"
	FeatureGapPct               = "gap_pct"
	FeatureChange1DPct          = "change_1d_pct"
	FeatureStopRiskPct          = "stop_risk_pct"
	FeatureDollarVolumeMedian20 = "dollar_volume_median20"
	FeatureDollarVolumePctile   = "dollar_volume_pctile"
	FeatureSqueezeRelease       = "squeeze_release"
)

// FeatureNames lists every name Lookup understands
func FeatureNames() []string {
	return []string{
		FeatureClose,
		FeatureVolume,
		FeatureVolatilityRatio,
		FeatureReturnVolatility20,
		FeatureVolumeRatio,
		FeatureVolumeRatio5v20,
		FeatureMomentum5D,
		FeatureMomentum20D,
		FeatureMAStack,
		FeaturePriceVsMA20,
		FeatureCloseToHigh20,
		FeatureGapPct,
		FeatureChange1DPct,
		FeatureStopRiskPct,
		FeatureDollarVolumeMedian20,
		FeatureDollarVolumePctile,
		FeatureSqueezeRelease,
	}
}

// IsKnownFeature checks if a feature name can be looked up
func IsKnownFeature(name string) bool {
	for _, n := range FeatureNames() {
		if n == name {
			return true
		}
	}
	return false
}

// Lookup returns a feature by name. Booleans map to 1/0.
func (f *FeatureVector) Lookup(name string) (float64, bool) {
	switch name {
	case FeatureClose:
		return f.Close, true
	case FeatureVolume:
		return float64(f.Volume), true
	case FeatureVolatilityRatio:
		return f.VolatilityRatio, true
	case FeatureReturnVolatility20:
		return f.ReturnVolatility20, true
	case FeatureVolumeRatio:
		return f.VolumeRatio, true
	case FeatureVolumeRatio5v20:
		return f.VolumeRatio5v20, true
	case FeatureMomentum5D:
		return f.Momentum5D, true
	case FeatureMomentum20D:
		return f.Momentum20D, true
	case FeatureMAStack:
		return boolToFloat(f.MAStack), true
	case FeaturePriceVsMA20:
		return f.PriceVsMA20, true
	case FeatureCloseToHigh20:
		return f.CloseToHigh20, true
	case FeatureGapPct:
		return f.GapPct, true
	case FeatureChange1DPct:
		return f.Change1DPct, true
	case FeatureStopRiskPct:
		return f.StopRiskPct, true
	case FeatureDollarVolumeMedian20:
		return f.DollarVolumeMedian20, true
	case FeatureDollarVolumePctile:
		return f.DollarVolumePctile, true
	case FeatureSqueezeRelease:
		return boolToFloat(f.SqueezeRelease), true
	default:
		return 0, false
	}
}

// Validate rejects malformed vectors (non-positive price, NaN/Inf values).
// Scanners treat a failure as DataUnavailable for that instrument.
func (f *FeatureVector) Validate() error {
	if f.InstrumentID == "" {
		return errMalformed("instrument_id is empty")
	}
	if !(f.Close > 0) {
		return errMalformed("close must be > 0")
	}
	if f.Volume < 0 {
		return errMalformed("volume must be >= 0")
	}
	for _, name := range FeatureNames() {
		v, _ := f.Lookup(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errMalformed(name + " is not finite")
		}
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
