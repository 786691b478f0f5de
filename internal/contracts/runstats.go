package contracts

import (
	"sort"
	"sync"
	"sync/atomic"
)

// RunStats accumulates counters for one run.
// ⭐ SSOT: 실행 단위 누적기 (전역 변수 금지, 워커에 명시적으로 전달)
//
// Safe for concurrent use by scanner worker pools.
type RunStats struct {
	scanned atomic.Int64

	mu       sync.Mutex
	produced map[Origin]int
	errors   []ErrorRecord
}

// NewRunStats creates an empty accumulator
func NewRunStats() *RunStats {
	return &RunStats{produced: make(map[Origin]int)}
}

// AddScanned counts evaluated instruments
func (s *RunStats) AddScanned(n int) {
	s.scanned.Add(int64(n))
}

// AddProduced counts candidates emitted by an origin
func (s *RunStats) AddProduced(origin Origin, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.produced == nil {
		s.produced = make(map[Origin]int)
	}
	s.produced[origin] += n
}

// RecordError appends a soft error
func (s *RunStats) RecordError(err *PipelineError) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err.Record())
}

// ErrorCount returns the number of recorded soft errors
func (s *RunStats) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors)
}

// Snapshot returns an immutable copy
func (s *RunStats) Snapshot() RunStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	produced := make(map[Origin]int, len(s.produced))
	total := 0
	for k, v := range s.produced {
		produced[k] = v
		total += v
	}

	errs := make([]ErrorRecord, len(s.errors))
	copy(errs, s.errors)
	// 워커 완료 순서와 무관하게 결정적 출력
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Source != errs[j].Source {
			return errs[i].Source < errs[j].Source
		}
		if errs[i].Kind != errs[j].Kind {
			return errs[i].Kind < errs[j].Kind
		}
		return errs[i].InstrumentID < errs[j].InstrumentID
	})

	return RunStatsSnapshot{
		InstrumentsScanned: int(s.scanned.Load()),
		CandidatesProduced: total,
		ProducedByOrigin:   produced,
		Errors:             errs,
	}
}

// RunStatsSnapshot is the read-only view attached to the report context
type RunStatsSnapshot struct {
	InstrumentsScanned int            `json:"instruments_scanned"`
	CandidatesProduced int            `json:"candidates_produced"`
	ProducedByOrigin   map[Origin]int `json:"produced_by_origin"`
	Errors             []ErrorRecord  `json:"errors"`
}

// CountErrors returns the number of errors of a kind
func (s RunStatsSnapshot) CountErrors(kind ErrorKind) int {
	n := 0
	for _, e := range s.Errors {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
