package contracts

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAvailable is returned by a FeatureProvider when no data exists
// for an instrument/date. Scanners skip the instrument.
var ErrNotAvailable = errors.New("features not available")

// ErrMalformedFeatures marks a feature vector that failed validation
var ErrMalformedFeatures = errors.New("malformed features")

func errMalformed(msg string) error {
	return fmt.Errorf("%w: %s", ErrMalformedFeatures, msg)
}

// ErrorKind classifies pipeline errors
// ⭐ SSOT: 에러 분류 (soft: 기록 후 계속 / fatal: 실행 중단)
type ErrorKind string

const (
	// KindDataUnavailable 단일 종목 데이터 누락/오류 (soft)
	KindDataUnavailable ErrorKind = "DATA_UNAVAILABLE"
	// KindConfiguration 택소노미/임계값 설정 오류 (fatal, 스캔 전 중단)
	KindConfiguration ErrorKind = "CONFIGURATION"
	// KindTimeoutExceeded 스캔 시간 예산 초과 (soft, 부분 결과 유지)
	KindTimeoutExceeded ErrorKind = "TIMEOUT_EXCEEDED"
	// KindInvariantViolation 점수 범위 위반 등 프로그래밍 결함 (fatal)
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
)

// Fatal reports whether errors of this kind abort a run
func (k ErrorKind) Fatal() bool {
	return k == KindConfiguration || k == KindInvariantViolation
}

// PipelineError is a classified error raised inside the pipeline
type PipelineError struct {
	Kind         ErrorKind
	Source       string // scanner name, stage, or config path
	InstrumentID string
	Err          error
}

func (e *PipelineError) Error() string {
	if e.InstrumentID != "" {
		return fmt.Sprintf("%s [%s/%s]: %v", e.Kind, e.Source, e.InstrumentID, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Source, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Record converts the error into its report form
func (e *PipelineError) Record() ErrorRecord {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return ErrorRecord{
		Kind:         e.Kind,
		Source:       e.Source,
		InstrumentID: e.InstrumentID,
		Message:      msg,
	}
}

// ErrorRecord is the JSON form of a soft error shown to the renderer
type ErrorRecord struct {
	Kind         ErrorKind `json:"kind"`
	Source       string    `json:"source"`
	InstrumentID string    `json:"instrument_id,omitempty"`
	Message      string    `json:"message"`
}

// DataUnavailable builds a soft per-instrument error
func DataUnavailable(source, instrumentID string, err error) *PipelineError {
	return &PipelineError{Kind: KindDataUnavailable, Source: source, InstrumentID: instrumentID, Err: err}
}

// ConfigurationError builds a fatal configuration error
func ConfigurationError(source string, err error) *PipelineError {
	return &PipelineError{Kind: KindConfiguration, Source: source, Err: err}
}

// TimeoutExceeded builds a soft scan-budget error
func TimeoutExceeded(source string, err error) *PipelineError {
	return &PipelineError{Kind: KindTimeoutExceeded, Source: source, Err: err}
}

// InvariantViolation builds a fatal defect error
func InvariantViolation(source, instrumentID string, err error) *PipelineError {
	return &PipelineError{Kind: KindInvariantViolation, Source: source, InstrumentID: instrumentID, Err: err}
}

// KindOf extracts the error kind, if err is (or wraps) a PipelineError
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsFatal reports whether err must abort the run.
// Unclassified errors are fatal except context cancellation/deadline, which
// the scanning phase turns into TimeoutExceeded.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if kind, ok := KindOf(err); ok {
		return kind.Fatal()
	}
	return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}
