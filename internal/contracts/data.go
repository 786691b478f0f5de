package contracts

import "time"

// DateLayout is the calendar date format used across the pipeline
const DateLayout = "2006-01-02"

// TruncateDate drops the time of day, keeping the calendar date in UTC
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Bar is one daily OHLCV record
type Bar struct {
	InstrumentID string    `json:"instrument_id"`
	Date         time.Time `json:"date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
}

// DollarVolume returns close * volume
func (b Bar) DollarVolume() float64 {
	return b.Close * float64(b.Volume)
}

// DataSnapshot summarizes data readiness for a run (Preparing 단계 결과)
type DataSnapshot struct {
	Date               time.Time `json:"date"`
	TotalInstruments   int       `json:"total_instruments"`
	CoveredInstruments int       `json:"covered_instruments"` // 당일 바가 있는 종목 수
}

// CoverageRate returns covered / total
func (d *DataSnapshot) CoverageRate() float64 {
	if d.TotalInstruments == 0 {
		return 0.0
	}
	return float64(d.CoveredInstruments) / float64(d.TotalInstruments)
}
