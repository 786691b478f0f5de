// Package breaker wraps sony/gobreaker for data-source calls.
package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned while the breaker rejects calls
var ErrOpen = gobreaker.ErrOpenState

// Settings 서킷 브레이커 설정
type Settings struct {
	Name                string
	Interval            time.Duration // closed 상태에서 카운트 초기화 주기
	Timeout             time.Duration // open → half-open 대기
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64

	// Ignore marks errors that must not count as failures (e.g. not-found)
	Ignore []error
}

// DefaultSettings returns the settings used for bar-source reads
func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         20,
		FailureRatio:        0.5,
	}
}

// Breaker guards calls to an unreliable dependency
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a breaker
func New(s Settings) *Breaker {
	st := gobreaker.Settings{
		Name:     s.Name,
		Interval: s.Interval,
		Timeout:  s.Timeout,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if s.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= s.ConsecutiveFailures {
			return true
		}
		if counts.Requests < s.MinRequests || s.FailureRatio <= 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > s.FailureRatio
	}
	if len(s.Ignore) > 0 {
		ignore := append([]error(nil), s.Ignore...)
		st.IsSuccessful = func(err error) bool {
			if err == nil {
				return true
			}
			for _, target := range ignore {
				if errors.Is(err, target) {
					return true
				}
			}
			return false
		}
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn unless the breaker is open
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// State returns the current state name (closed, half-open, open)
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.cb.Name()
}
