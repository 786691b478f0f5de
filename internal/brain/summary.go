package brain

import (
	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/selection"
)

// RunSummary is the compact form of a run pushed to subscribers and kept in
// job history
type RunSummary struct {
	RunID         string   `json:"run_id"`
	Date          string   `json:"date"`
	State         string   `json:"state"`
	Candidates    int      `json:"candidates"`
	DualConfirmed int      `json:"dual_confirmed"`
	SoftErrors    int      `json:"soft_errors"`
	Top           []string `json:"top"`
	DurationMS    int64    `json:"duration_ms"`
	Error         string   `json:"error,omitempty"`
}

const summaryTop = 5

// Summary condenses a run result
func (r *RunResult) Summary() RunSummary {
	s := RunSummary{
		RunID:      r.RunID,
		Date:       r.Date.Format(contracts.DateLayout),
		State:      string(r.State),
		Top:        []string{},
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Error != nil {
		s.Error = r.Error.Error()
	}
	if r.Context == nil {
		return s
	}

	cands := r.Context.Candidates()
	s.Candidates = len(cands)
	s.DualConfirmed = len(selection.DualConfirmed(cands))
	s.SoftErrors = len(r.Context.Errors())
	for i, c := range cands {
		if i >= summaryTop {
			break
		}
		s.Top = append(s.Top, c.InstrumentID())
	}
	return s
}
