package selection

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// Consolidator merges per-scanner candidate lists into one ranked list
// ⭐ SSOT: 후보 병합/중복 제거/순위는 여기서만
//
// Single-threaded. Runs only after every scanner has returned.
type Consolidator struct {
	limit  int
	logger *logger.Logger
}

// NewConsolidator creates a consolidator. limit <= 0 means unlimited.
func NewConsolidator(limit int, log *logger.Logger) *Consolidator {
	return &Consolidator{
		limit:  limit,
		logger: log.WithComponent("consolidator"),
	}
}

// Limit returns the global output limit
func (c *Consolidator) Limit() int {
	return c.limit
}

// Consolidate groups candidates by instrument.
//
//	1 origin   → candidate passes through unchanged
//	2+ origins → contracts.MergeCandidates (origin=consolidated, score=max, tags=union)
//
// Output is ordered by contracts.RankLess with the limit applied last.
// Feeding the output back in returns it unchanged.
func (c *Consolidator) Consolidate(lists ...[]contracts.Candidate) ([]contracts.Candidate, error) {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	if total == 0 {
		return []contracts.Candidate{}, nil
	}

	var asOf time.Time
	groups := make(map[string]map[contracts.Origin]contracts.Candidate)
	order := make([]string, 0, total)

	for _, list := range lists {
		for _, cand := range list {
			if asOf.IsZero() {
				asOf = cand.AsOf()
			} else if !cand.AsOf().Equal(asOf) {
				return nil, contracts.InvariantViolation(string(contracts.OriginConsolidated), cand.InstrumentID(),
					fmt.Errorf("mixed as_of_date: %s vs %s",
						cand.AsOf().Format(contracts.DateLayout), asOf.Format(contracts.DateLayout)))
			}

			byOrigin, ok := groups[cand.InstrumentID()]
			if !ok {
				byOrigin = make(map[contracts.Origin]contracts.Candidate)
				groups[cand.InstrumentID()] = byOrigin
				order = append(order, cand.InstrumentID())
			}
			// 같은 origin 중복 → 높은 점수 유지
			if prev, exists := byOrigin[cand.Origin()]; !exists || cand.Score() > prev.Score() {
				byOrigin[cand.Origin()] = cand
			}
		}
	}

	out := make([]contracts.Candidate, 0, len(groups))
	merged := 0
	for _, id := range order {
		byOrigin := groups[id]
		if len(byOrigin) == 1 {
			for _, cand := range byOrigin {
				out = append(out, cand)
			}
			continue
		}

		contributors := make([]contracts.Candidate, 0, len(byOrigin))
		for _, cand := range byOrigin {
			contributors = append(contributors, cand)
		}
		sort.Slice(contributors, func(i, j int) bool {
			return contributors[i].Origin() < contributors[j].Origin()
		})

		m, err := contracts.MergeCandidates(contributors...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
		merged++
	}

	contracts.SortCandidates(out)
	result := contracts.Truncate(out, c.limit)

	c.logger.WithFields(map[string]interface{}{
		"input":       total,
		"instruments": len(groups),
		"merged":      merged,
		"output":      len(result),
	}).Info("Consolidation completed")

	return result, nil
}

// DualConfirmed returns the candidates that more than one scanner agreed on
func DualConfirmed(cands []contracts.Candidate) []contracts.Candidate {
	out := make([]contracts.Candidate, 0)
	for _, cand := range cands {
		if len(cand.SourceOrigins()) > 1 {
			out = append(out, cand)
		}
	}
	return out
}

// ByOrigin groups candidates by their source scanners.
// A consolidated candidate appears under every contributing origin.
func ByOrigin(cands []contracts.Candidate) map[string][]contracts.Candidate {
	out := make(map[string][]contracts.Candidate)
	for _, cand := range cands {
		for _, origin := range cand.SourceOrigins() {
			out[origin] = append(out[origin], cand)
		}
	}
	return out
}
