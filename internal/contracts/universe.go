package contracts

import "time"

// Batch is the set of instruments a scanner evaluates for one date
// ⭐ SSOT: Orchestrator → Scanner 입력
type Batch struct {
	AsOf        time.Time `json:"as_of_date"`
	Instruments []string  `json:"instruments"`
}

// NewBatch builds a batch with a truncated date and a copy of the ids
func NewBatch(asOf time.Time, instruments []string) Batch {
	ids := make([]string, len(instruments))
	copy(ids, instruments)
	return Batch{AsOf: TruncateDate(asOf), Instruments: ids}
}

// Count returns the number of instruments
func (b Batch) Count() int {
	return len(b.Instruments)
}

// IsEmpty reports whether the batch has no instruments
func (b Batch) IsEmpty() bool {
	return len(b.Instruments) == 0
}
