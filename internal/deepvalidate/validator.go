// Package deepvalidate checks event follow-through on forward daily bars.
//
// It is an operator-triggered step that runs after a report exists. It
// sees instrument ids, dates and event-namespace tags only.
package deepvalidate

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/features"
	"github.com/wonny/aegis/v13/screener/internal/taxonomy"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// Event tags with a follow-through check
const (
	TagBreakout       = "BREAKOUT"
	TagGap            = "GAP"
	TagSqueezeRelease = "SQUEEZE_RELEASE"
)

// DefaultForwardDays is the follow-through window in trading days
const DefaultForwardDays = 5

// historyBars: event bar + 20-bar pre-event box
const historyBars = 21

// Subject is what the validator may know about a candidate
type Subject struct {
	InstrumentID string    `json:"instrument_id"`
	AsOf         time.Time `json:"as_of_date"`
	EventTags    []string  `json:"event_tags"`
}

// Subjects extracts event-namespace tags from ranked candidates.
// ⭐ SSOT: explanatory 태그는 검증기에 전달하지 않음
// Candidates without an event tag are dropped. Order follows the input.
func Subjects(cands []contracts.Candidate, engine *taxonomy.Engine) []Subject {
	out := make([]Subject, 0)
	for _, c := range cands {
		events := engine.EventTags(c.Tags())
		if len(events) == 0 {
			continue
		}
		out = append(out, Subject{
			InstrumentID: c.InstrumentID(),
			AsOf:         c.AsOf(),
			EventTags:    events,
		})
	}
	return out
}

// BarReader is the historical view the validator needs
type BarReader interface {
	LatestBars(ctx context.Context, instrumentID string, asOf time.Time, n int) ([]contracts.Bar, error)
	ForwardBars(ctx context.Context, instrumentID string, eventDate time.Time, days int) ([]contracts.Bar, error)
}

// Validator runs follow-through checks
type Validator struct {
	bars        BarReader
	forwardDays int
	logger      *logger.Logger
}

// NewValidator creates a validator. forwardDays <= 0 uses DefaultForwardDays.
func NewValidator(bars BarReader, forwardDays int, log *logger.Logger) *Validator {
	if forwardDays <= 0 {
		forwardDays = DefaultForwardDays
	}
	return &Validator{
		bars:        bars,
		forwardDays: forwardDays,
		logger:      log.WithComponent("deepvalidate"),
	}
}

// ForwardDays returns the follow-through window
func (v *Validator) ForwardDays() int {
	return v.forwardDays
}

// Validate returns one result per subject event tag.
// Missing data yields pending results; only ctx errors are returned.
func (v *Validator) Validate(ctx context.Context, subjects []Subject) ([]contracts.ValidationResult, error) {
	results := make([]contracts.ValidationResult, 0, len(subjects))
	counts := make(map[contracts.ValidationStatus]int)

	for _, s := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w, err := v.load(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			v.logger.WithError(err).WithInstrument(s.InstrumentID).Warn("Validation data unavailable")
		}

		for _, tag := range s.EventTags {
			r := contracts.ValidationResult{
				InstrumentID: s.InstrumentID,
				AsOf:         contracts.TruncateDate(s.AsOf),
				EventTag:     tag,
			}
			switch {
			case err != nil:
				r.Status, r.Detail = contracts.ValidationPending, err.Error()
			default:
				r.ForwardBars = len(w.forward)
				r.Status, r.Detail = v.check(tag, w)
			}
			counts[r.Status]++
			results = append(results, r)
		}
	}

	v.logger.WithFields(map[string]interface{}{
		"subjects":  len(subjects),
		"results":   len(results),
		"confirmed": counts[contracts.ValidationConfirmed],
		"rejected":  counts[contracts.ValidationRejected],
		"pending":   counts[contracts.ValidationPending],
	}).Info("Deep validation completed")

	return results, nil
}

// window is the event bar with its history and follow-through bars
type window struct {
	history []contracts.Bar // 마지막 원소 = 이벤트 당일
	forward []contracts.Bar
}

func (w window) event() contracts.Bar {
	return w.history[len(w.history)-1]
}

func (v *Validator) load(ctx context.Context, s Subject) (window, error) {
	asOf := contracts.TruncateDate(s.AsOf)

	history, err := v.bars.LatestBars(ctx, s.InstrumentID, asOf, historyBars)
	if err != nil {
		return window{}, fmt.Errorf("load history: %w", err)
	}
	if len(history) < 2 || !history[len(history)-1].Date.Equal(asOf) {
		return window{}, fmt.Errorf("event bar %s not found", asOf.Format(contracts.DateLayout))
	}

	forward, err := v.bars.ForwardBars(ctx, s.InstrumentID, asOf, v.forwardDays)
	if err != nil {
		return window{}, fmt.Errorf("load forward bars: %w", err)
	}
	return window{history: history, forward: forward}, nil
}

func (v *Validator) check(tag string, w window) (contracts.ValidationStatus, string) {
	switch tag {
	case TagBreakout:
		return v.checkBreakout(w)
	case TagGap:
		return v.checkGap(w)
	case TagSqueezeRelease:
		return v.checkSqueeze(w)
	default:
		return contracts.ValidationPending, fmt.Sprintf("no follow-through check for %s", tag)
	}
}

// checkBreakout: no later close below the event-day open
func (v *Validator) checkBreakout(w window) (contracts.ValidationStatus, string) {
	open := w.event().Open
	for _, b := range w.forward {
		if b.Close < open {
			return contracts.ValidationRejected,
				fmt.Sprintf("close %.2f below event open %.2f on %s", b.Close, open, b.Date.Format(contracts.DateLayout))
		}
	}
	if len(w.forward) < v.forwardDays {
		return contracts.ValidationPending, fmt.Sprintf("%d of %d forward bars", len(w.forward), v.forwardDays)
	}
	return contracts.ValidationConfirmed, fmt.Sprintf("held above event open %.2f", open)
}

// checkGap: the gap is not filled back to the prior close
func (v *Validator) checkGap(w window) (contracts.ValidationStatus, string) {
	prevClose := w.history[len(w.history)-2].Close
	ev := w.event()
	up := ev.Open > prevClose

	for _, b := range w.forward {
		if (up && b.Low <= prevClose) || (!up && b.High >= prevClose) {
			return contracts.ValidationRejected,
				fmt.Sprintf("gap filled to %.2f on %s", prevClose, b.Date.Format(contracts.DateLayout))
		}
	}
	if len(w.forward) < v.forwardDays {
		return contracts.ValidationPending, fmt.Sprintf("%d of %d forward bars", len(w.forward), v.forwardDays)
	}
	return contracts.ValidationConfirmed, fmt.Sprintf("gap from %.2f held", prevClose)
}

// checkSqueeze: the final close stays outside the pre-event box on the event side
func (v *Validator) checkSqueeze(w window) (contracts.ValidationStatus, string) {
	high, low, ok := features.PreEventBox(w.history, len(w.history)-1)
	if !ok {
		return contracts.ValidationPending, "not enough history for pre-event box"
	}

	ev := w.event()
	var side int
	switch {
	case ev.Close > high:
		side = 1
	case ev.Close < low:
		side = -1
	default:
		return contracts.ValidationRejected, fmt.Sprintf("event close %.2f inside box %.2f-%.2f", ev.Close, low, high)
	}

	if len(w.forward) < v.forwardDays {
		return contracts.ValidationPending, fmt.Sprintf("%d of %d forward bars", len(w.forward), v.forwardDays)
	}

	last := w.forward[len(w.forward)-1].Close
	if (side > 0 && last > high) || (side < 0 && last < low) {
		return contracts.ValidationConfirmed, fmt.Sprintf("close %.2f outside box %.2f-%.2f", last, low, high)
	}
	return contracts.ValidationRejected, fmt.Sprintf("close %.2f back inside box %.2f-%.2f", last, low, high)
}
