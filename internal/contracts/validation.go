package contracts

import "time"

// ValidationStatus is the outcome of a deep-validation check
type ValidationStatus string

const (
	ValidationConfirmed ValidationStatus = "confirmed"
	ValidationRejected  ValidationStatus = "rejected"
	ValidationPending   ValidationStatus = "pending" // 후속 데이터 부족
)

// ValidationResult is one deep-validation verdict for an event tag.
// Produced outside the run by the operator-triggered validator; the report
// context carries it without interpreting it.
type ValidationResult struct {
	InstrumentID string           `json:"instrument_id"`
	AsOf         time.Time        `json:"as_of_date"`
	EventTag     string           `json:"event_tag"`
	Status       ValidationStatus `json:"status"`
	Detail       string           `json:"detail,omitempty"`
	ForwardBars  int              `json:"forward_bars"`
}
