// Package report assembles the read-only run context and renders it.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// ScannerOutput is one scanner's ranked list as it left the scanning phase
type ScannerOutput struct {
	Origin     contracts.Origin      `json:"origin"`
	MinScore   int                   `json:"min_score"`
	Limit      int                   `json:"limit"`
	Candidates []contracts.Candidate `json:"candidates"`
}

// Input carries everything the report needs.
// ⭐ SSOT: 렌더러가 쓰는 데이터는 여기 모두 있어야 함 (렌더러는 계산/조회 금지)
type Input struct {
	RunID           string
	AsOf            time.Time
	GeneratedAt     time.Time
	TaxonomyVersion string
	Scanners        []ScannerOutput
	Candidates      []contracts.Candidate // Consolidator 출력 (순위 확정)
	Validations     []contracts.ValidationResult
	Stats           contracts.RunStatsSnapshot
	Stages          []contracts.StageResult
}

// Context is the immutable structure handed to a renderer.
// Every collection is non-nil. Accessors return copies.
type Context struct {
	runID           string
	asOf            time.Time
	generatedAt     time.Time
	taxonomyVersion string
	scanners        []ScannerOutput
	candidates      []contracts.Candidate
	validations     []contracts.ValidationResult
	stats           contracts.RunStatsSnapshot
	stages          []contracts.StageResult
}

// Build assembles a Context. It copies its input and performs no filtering,
// scoring or inference.
func Build(in Input) *Context {
	return &Context{
		runID:           in.RunID,
		asOf:            contracts.TruncateDate(in.AsOf),
		generatedAt:     in.GeneratedAt.UTC(),
		taxonomyVersion: in.TaxonomyVersion,
		scanners:        copyScanners(in.Scanners),
		candidates:      copyCandidates(in.Candidates),
		validations:     copyValidations(in.Validations),
		stats:           copyStats(in.Stats),
		stages:          copyStages(in.Stages),
	}
}

// RunID returns the run identifier
func (c *Context) RunID() string { return c.runID }

// AsOf returns the run date
func (c *Context) AsOf() time.Time { return c.asOf }

// GeneratedAt returns the build time (UTC)
func (c *Context) GeneratedAt() time.Time { return c.generatedAt }

// TaxonomyVersion returns the strategy version tag (id@version#hash)
func (c *Context) TaxonomyVersion() string { return c.taxonomyVersion }

// Scanners returns each scanner's ranked output
func (c *Context) Scanners() []ScannerOutput { return copyScanners(c.scanners) }

// Candidates returns the consolidated ranked list
func (c *Context) Candidates() []contracts.Candidate { return copyCandidates(c.candidates) }

// Validations returns deep-validation results attached to the run
func (c *Context) Validations() []contracts.ValidationResult {
	return copyValidations(c.validations)
}

// Stats returns the run counters
func (c *Context) Stats() contracts.RunStatsSnapshot { return copyStats(c.stats) }

// Errors returns the recorded soft errors
func (c *Context) Errors() []contracts.ErrorRecord { return copyStats(c.stats).Errors }

// Stages returns per-state results in execution order
func (c *Context) Stages() []contracts.StageResult { return copyStages(c.stages) }

// Scanner returns the output of one scanner (empty when it did not run)
func (c *Context) Scanner(origin contracts.Origin) ScannerOutput {
	for _, s := range c.scanners {
		if s.Origin == origin {
			return copyScanners([]ScannerOutput{s})[0]
		}
	}
	return ScannerOutput{Origin: origin, Candidates: []contracts.Candidate{}}
}

// WithValidations returns a new Context with deep-validation results attached.
// The receiver is not modified.
func (c *Context) WithValidations(results []contracts.ValidationResult) *Context {
	out := *c
	out.scanners = copyScanners(c.scanners)
	out.candidates = copyCandidates(c.candidates)
	out.stats = copyStats(c.stats)
	out.stages = copyStages(c.stages)
	out.validations = copyValidations(results)
	return &out
}

// contextJSON is the persisted form
type contextJSON struct {
	RunID           string                       `json:"run_id"`
	AsOf            string                       `json:"as_of_date"`
	GeneratedAt     time.Time                    `json:"generated_at"`
	TaxonomyVersion string                       `json:"taxonomy_version"`
	Scanners        []ScannerOutput              `json:"scanners"`
	Candidates      []contracts.Candidate        `json:"candidates"`
	Validations     []contracts.ValidationResult `json:"validations"`
	Stats           contracts.RunStatsSnapshot   `json:"stats"`
	Stages          []contracts.StageResult      `json:"stages"`
}

// MarshalJSON implements json.Marshaler
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(contextJSON{
		RunID:           c.runID,
		AsOf:            c.asOf.Format(contracts.DateLayout),
		GeneratedAt:     c.generatedAt,
		TaxonomyVersion: c.taxonomyVersion,
		Scanners:        c.scanners,
		Candidates:      c.candidates,
		Validations:     c.validations,
		Stats:           c.stats,
		Stages:          c.stages,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Context) UnmarshalJSON(data []byte) error {
	var w contextJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	asOf, err := time.Parse(contracts.DateLayout, w.AsOf)
	if err != nil {
		return fmt.Errorf("parse as_of_date: %w", err)
	}
	*c = *Build(Input{
		RunID:           w.RunID,
		AsOf:            asOf,
		GeneratedAt:     w.GeneratedAt,
		TaxonomyVersion: w.TaxonomyVersion,
		Scanners:        w.Scanners,
		Candidates:      w.Candidates,
		Validations:     w.Validations,
		Stats:           w.Stats,
		Stages:          w.Stages,
	})
	return nil
}

func copyCandidates(in []contracts.Candidate) []contracts.Candidate {
	out := make([]contracts.Candidate, len(in))
	copy(out, in)
	return out
}

func copyScanners(in []ScannerOutput) []ScannerOutput {
	out := make([]ScannerOutput, len(in))
	for i, s := range in {
		out[i] = ScannerOutput{
			Origin:     s.Origin,
			MinScore:   s.MinScore,
			Limit:      s.Limit,
			Candidates: copyCandidates(s.Candidates),
		}
	}
	return out
}

func copyValidations(in []contracts.ValidationResult) []contracts.ValidationResult {
	out := make([]contracts.ValidationResult, len(in))
	copy(out, in)
	return out
}

func copyStages(in []contracts.StageResult) []contracts.StageResult {
	out := make([]contracts.StageResult, len(in))
	copy(out, in)
	return out
}

func copyStats(in contracts.RunStatsSnapshot) contracts.RunStatsSnapshot {
	produced := make(map[contracts.Origin]int, len(in.ProducedByOrigin))
	for k, v := range in.ProducedByOrigin {
		produced[k] = v
	}
	errs := make([]contracts.ErrorRecord, len(in.Errors))
	copy(errs, in.Errors)
	return contracts.RunStatsSnapshot{
		InstrumentsScanned: in.InstrumentsScanned,
		CandidatesProduced: in.CandidatesProduced,
		ProducedByOrigin:   produced,
		Errors:             errs,
	}
}
