package contracts

import "time"

// Run 상태 정의 (SSOT)
// 모든 로그, 메트릭, 리포트에서 이 상수를 사용해야 함
//
// 상태 흐름:
//   PREPARING → SCANNING → CONSOLIDATING → REPORT_BUILDING → DONE
//   (어느 상태에서든) → FAILED

// RunState represents an orchestrator state
type RunState string

const (
	// StatePreparing 데이터 준비 (Refresh + 종목 목록)
	// 위치: internal/features/
	StatePreparing RunState = "PREPARING"

	// StateScanning 스캐너 병렬 실행
	// 위치: internal/scanner/
	StateScanning RunState = "SCANNING"

	// StateConsolidating 후보 병합/중복 제거/순위
	// 위치: internal/selection/
	StateConsolidating RunState = "CONSOLIDATING"

	// StateReportBuilding 리포트 컨텍스트 조립
	// 위치: internal/report/
	StateReportBuilding RunState = "REPORT_BUILDING"

	// StateDone 정상 종료 (soft error 포함 가능)
	StateDone RunState = "DONE"

	// StateFailed 치명적 오류로 중단, 컨텍스트 없음
	StateFailed RunState = "FAILED"
)

// String returns the state name
func (s RunState) String() string {
	return string(s)
}

// ShortName returns an abbreviated state name
func (s RunState) ShortName() string {
	switch s {
	case StatePreparing:
		return "PREP"
	case StateScanning:
		return "SCAN"
	case StateConsolidating:
		return "CONS"
	case StateReportBuilding:
		return "RPT"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Description returns Korean description of the state
func (s RunState) Description() string {
	switch s {
	case StatePreparing:
		return "데이터 준비"
	case StateScanning:
		return "후보 스캔"
	case StateConsolidating:
		return "후보 병합/순위"
	case StateReportBuilding:
		return "리포트 컨텍스트 생성"
	case StateDone:
		return "완료"
	case StateFailed:
		return "실패"
	default:
		return "알 수 없음"
	}
}

// IsTerminal reports whether no further transition is possible
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition checks the forward-only state machine
func (s RunState) CanTransition(to RunState) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	order := AllStates()
	for i := 0; i < len(order)-1; i++ {
		if order[i] == s {
			return order[i+1] == to
		}
	}
	return false
}

// AllStates returns the non-failure states in order
func AllStates() []RunState {
	return []RunState{
		StatePreparing,
		StateScanning,
		StateConsolidating,
		StateReportBuilding,
		StateDone,
	}
}

// IsValidState checks if a state string is valid
func IsValidState(s string) bool {
	if s == string(StateFailed) {
		return true
	}
	for _, state := range AllStates() {
		if string(state) == s {
			return true
		}
	}
	return false
}

// StageResult records one completed (or failed) state of a run
type StageResult struct {
	State       RunState `json:"state"`
	Success     bool     `json:"success"`
	InputCount  int      `json:"input_count"`
	OutputCount int      `json:"output_count"`
	Duration    int64    `json:"duration_ms"`
	Error       string   `json:"error,omitempty"`
}

// NewStageResult builds a StageResult from a start time
func NewStageResult(state RunState, start time.Time, in, out int, err error) StageResult {
	r := StageResult{
		State:       state,
		Success:     err == nil,
		InputCount:  in,
		OutputCount: out,
		Duration:    time.Since(start).Milliseconds(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
