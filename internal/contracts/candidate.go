package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Origin identifies who produced a Candidate
type Origin string

const (
	// OriginMomentum 추세 스캐너
	OriginMomentum Origin = "momentum"
	// OriginStructural 구조적 이상 스캐너
	OriginStructural Origin = "structural"
	// OriginConsolidated 복수 스캐너 합의 (Consolidator 전용)
	OriginConsolidated Origin = "consolidated"
)

// String returns the origin name
func (o Origin) String() string {
	return string(o)
}

// Candidate is a scored, tagged instrument worth attention on a given date.
// ⭐ SSOT: Scanner → Consolidator → Report 사이의 유일한 데이터 단위
//
// Candidate is immutable. Fields are unexported and every accessor returns a copy.
type Candidate struct {
	instrumentID   string
	asOf           time.Time
	referencePrice float64
	origin         Origin
	score          int
	tags           []string
	stopReference  *float64
	riskPercent    *float64
	attributes     map[string]interface{}
}

// CandidateParams carries the fields of a new Candidate
type CandidateParams struct {
	InstrumentID   string
	AsOf           time.Time
	ReferencePrice float64
	Origin         Origin
	Score          int
	Tags           []string
	StopReference  *float64
	RiskPercent    *float64
	Attributes     map[string]interface{}
}

// NewCandidate validates params and builds a Candidate.
// Scanners use this; the consolidated origin is rejected here and only
// produced by MergeCandidates.
func NewCandidate(p CandidateParams) (Candidate, error) {
	if p.Origin == OriginConsolidated {
		return Candidate{}, InvariantViolation(string(p.Origin), p.InstrumentID,
			fmt.Errorf("origin %q is reserved for the consolidator", p.Origin))
	}
	return newCandidate(p)
}

func newCandidate(p CandidateParams) (Candidate, error) {
	if err := p.validate(); err != nil {
		return Candidate{}, InvariantViolation(string(p.Origin), p.InstrumentID, err)
	}

	c := Candidate{
		instrumentID:   p.InstrumentID,
		asOf:           TruncateDate(p.AsOf),
		referencePrice: p.ReferencePrice,
		origin:         p.Origin,
		score:          p.Score,
		tags:           normalizeTags(p.Tags),
		attributes:     copyAttributes(p.Attributes),
	}
	if p.StopReference != nil {
		v := *p.StopReference
		c.stopReference = &v
	}
	if p.RiskPercent != nil {
		v := *p.RiskPercent
		c.riskPercent = &v
	}
	return c, nil
}

func (p CandidateParams) validate() error {
	if p.InstrumentID == "" {
		return fmt.Errorf("instrument_id is required")
	}
	if p.Origin == "" {
		return fmt.Errorf("origin is required")
	}
	if p.AsOf.IsZero() {
		return fmt.Errorf("as_of_date is required")
	}
	if !(p.ReferencePrice > 0) || math.IsInf(p.ReferencePrice, 0) {
		return fmt.Errorf("reference_price must be > 0, got %v", p.ReferencePrice)
	}
	if p.Score < 0 || p.Score > 100 {
		return fmt.Errorf("score must be 0-100, got %d", p.Score)
	}
	if p.StopReference != nil && !(*p.StopReference > 0) {
		return fmt.Errorf("stop_reference must be > 0, got %v", *p.StopReference)
	}
	// risk_percent는 항상 양수 크기 (방향은 reference_price vs stop_reference로 판단)
	if p.RiskPercent != nil && !(*p.RiskPercent >= 0 && *p.RiskPercent <= 100) {
		return fmt.Errorf("risk_percent must be 0-100, got %v", *p.RiskPercent)
	}
	return nil
}

// InstrumentID returns the instrument identifier
func (c Candidate) InstrumentID() string { return c.instrumentID }

// AsOf returns the scan date
func (c Candidate) AsOf() time.Time { return c.asOf }

// ReferencePrice returns the price used for scoring
func (c Candidate) ReferencePrice() float64 { return c.referencePrice }

// Origin returns the producing scanner or OriginConsolidated
func (c Candidate) Origin() Origin { return c.origin }

// Score returns the bounded score (0-100)
func (c Candidate) Score() int { return c.score }

// Tags returns a sorted copy of the tag set
func (c Candidate) Tags() []string {
	out := make([]string, len(c.tags))
	copy(out, c.tags)
	return out
}

// HasTag reports whether the tag is present
func (c Candidate) HasTag(tag string) bool {
	i := sort.SearchStrings(c.tags, tag)
	return i < len(c.tags) && c.tags[i] == tag
}

// HasAllTags reports whether every tag is present
func (c Candidate) HasAllTags(tags ...string) bool {
	for _, t := range tags {
		if !c.HasTag(t) {
			return false
		}
	}
	return true
}

// StopReference returns the stop level if one exists
func (c Candidate) StopReference() (float64, bool) {
	if c.stopReference == nil {
		return 0, false
	}
	return *c.stopReference, true
}

// RiskPercent returns the risk magnitude if one exists
func (c Candidate) RiskPercent() (float64, bool) {
	if c.riskPercent == nil {
		return 0, false
	}
	return *c.riskPercent, true
}

// Attributes returns a copy of the audit attributes
func (c Candidate) Attributes() map[string]interface{} {
	return copyAttributes(c.attributes)
}

// Attribute returns a single attribute value
func (c Candidate) Attribute(key string) (interface{}, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// Params returns the candidate fields as params (copies)
func (c Candidate) Params() CandidateParams {
	p := CandidateParams{
		InstrumentID:   c.instrumentID,
		AsOf:           c.asOf,
		ReferencePrice: c.referencePrice,
		Origin:         c.origin,
		Score:          c.score,
		Tags:           c.Tags(),
		Attributes:     c.Attributes(),
	}
	if v, ok := c.StopReference(); ok {
		p.StopReference = &v
	}
	if v, ok := c.RiskPercent(); ok {
		p.RiskPercent = &v
	}
	return p
}

// Equal reports whether two candidates carry identical data
func (c Candidate) Equal(other Candidate) bool {
	a, errA := json.Marshal(c)
	b, errB := json.Marshal(other)
	return errA == nil && errB == nil && string(a) == string(b)
}

// candidateJSON is the wire form used for report persistence
type candidateJSON struct {
	InstrumentID   string                 `json:"instrument_id"`
	AsOf           string                 `json:"as_of_date"`
	ReferencePrice float64                `json:"reference_price"`
	Origin         Origin                 `json:"origin"`
	Score          int                    `json:"score"`
	Tags           []string               `json:"tags"`
	StopReference  *float64               `json:"stop_reference,omitempty"`
	RiskPercent    *float64               `json:"risk_percent,omitempty"`
	Attributes     map[string]interface{} `json:"attributes"`
}

// MarshalJSON implements json.Marshaler
func (c Candidate) MarshalJSON() ([]byte, error) {
	attrs := c.attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	tags := c.tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(candidateJSON{
		InstrumentID:   c.instrumentID,
		AsOf:           c.asOf.Format(DateLayout),
		ReferencePrice: c.referencePrice,
		Origin:         c.origin,
		Score:          c.score,
		Tags:           tags,
		StopReference:  c.stopReference,
		RiskPercent:    c.riskPercent,
		Attributes:     attrs,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// Decoded values go through the same validation as NewCandidate.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var w candidateJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	asOf, err := time.Parse(DateLayout, w.AsOf)
	if err != nil {
		return fmt.Errorf("parse as_of_date: %w", err)
	}
	decoded, err := newCandidate(CandidateParams{
		InstrumentID:   w.InstrumentID,
		AsOf:           asOf,
		ReferencePrice: w.ReferencePrice,
		Origin:         w.Origin,
		Score:          w.Score,
		Tags:           w.Tags,
		StopReference:  w.StopReference,
		RiskPercent:    w.RiskPercent,
		Attributes:     w.Attributes,
	})
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// normalizeTags returns a sorted, de-duplicated copy without empty names
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func copyAttributes(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
