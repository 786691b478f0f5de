package contracts

import (
	"fmt"
	"sort"
	"strings"
)

// Attribute keys written by MergeCandidates
const (
	AttrOrigins       = "origins"
	AttrDualConfirmed = "dual_confirmed"
	AttrScorePrefix   = "score."
	AttrVeto          = "veto" // 쉼표로 구분된 veto 태그
)

// MergeCandidates synthesizes one consolidated Candidate from contributors of
// two or more distinct origins for the same instrument and date.
//
// score = max, tags = union, stop/risk/reference price from the highest scorer
// (ties broken by origin name). Attributes record the agreeing origins, each
// origin's score and the contributor attributes prefixed with "<origin>.".
// A vetoed contributor vetoes the merge: score becomes 0 and AttrVeto lists
// every contributor's veto tags.
func MergeCandidates(contributors ...Candidate) (Candidate, error) {
	if len(contributors) < 2 {
		return Candidate{}, InvariantViolation(string(OriginConsolidated), "",
			fmt.Errorf("merge needs at least 2 contributors, got %d", len(contributors)))
	}

	ranked := make([]Candidate, len(contributors))
	copy(ranked, contributors)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].origin < ranked[j].origin
	})

	top := ranked[0]
	attrs := make(map[string]interface{})
	var tags []string
	var origins []string
	var vetoes []string

	for _, c := range ranked {
		if c.instrumentID != top.instrumentID {
			return Candidate{}, InvariantViolation(string(OriginConsolidated), top.instrumentID,
				fmt.Errorf("cannot merge instrument %s into %s", c.instrumentID, top.instrumentID))
		}
		if !c.asOf.Equal(top.asOf) {
			return Candidate{}, InvariantViolation(string(OriginConsolidated), top.instrumentID,
				fmt.Errorf("as_of_date mismatch: %s vs %s", c.asOf.Format(DateLayout), top.asOf.Format(DateLayout)))
		}

		tags = append(tags, c.tags...)
		origins = append(origins, c.sourceOrigins()...)
		vetoes = append(vetoes, c.VetoTags()...)

		if c.origin == OriginConsolidated {
			// 이미 합쳐진 후보: 원래 기여자 정보를 그대로 승계
			for k, v := range c.attributes {
				if k == AttrOrigins || k == AttrDualConfirmed || k == AttrVeto {
					continue
				}
				attrs[k] = v
			}
			continue
		}

		attrs[AttrScorePrefix+string(c.origin)] = c.score
		for k, v := range c.attributes {
			attrs[string(c.origin)+"."+k] = v
		}
	}

	origins = uniqueSorted(origins)
	if len(origins) < 2 {
		return Candidate{}, InvariantViolation(string(OriginConsolidated), top.instrumentID,
			fmt.Errorf("merge needs 2 distinct origins, got %v", origins))
	}
	attrs[AttrOrigins] = strings.Join(origins, ",")
	attrs[AttrDualConfirmed] = true

	score := top.score
	if len(vetoes) > 0 {
		score = 0
		attrs[AttrVeto] = strings.Join(uniqueSorted(vetoes), ",")
	}

	p := CandidateParams{
		InstrumentID:   top.instrumentID,
		AsOf:           top.asOf,
		ReferencePrice: top.referencePrice,
		Origin:         OriginConsolidated,
		Score:          score,
		Tags:           tags,
		Attributes:     attrs,
	}
	if v, ok := top.StopReference(); ok {
		p.StopReference = &v
	}
	if v, ok := top.RiskPercent(); ok {
		p.RiskPercent = &v
	}
	return newCandidate(p)
}

// SourceOrigins returns the scanner origins behind a candidate.
// A consolidated candidate reports the origins recorded at merge time.
func (c Candidate) SourceOrigins() []string {
	return c.sourceOrigins()
}

func (c Candidate) sourceOrigins() []string {
	if c.origin != OriginConsolidated {
		return []string{string(c.origin)}
	}
	raw, _ := c.attributes[AttrOrigins].(string)
	if raw == "" {
		return []string{string(c.origin)}
	}
	return strings.Split(raw, ",")
}

// VetoTags returns the veto tags recorded on the candidate, if any
func (c Candidate) VetoTags() []string {
	raw, _ := c.attributes[AttrVeto].(string)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// IsVetoed reports whether a veto tag forced the score to 0
func (c Candidate) IsVetoed() bool {
	return len(c.VetoTags()) > 0
}

// OriginScore returns the score a given scanner assigned.
// Single-origin candidates answer only for their own origin.
func (c Candidate) OriginScore(origin Origin) (int, bool) {
	if c.origin == origin {
		return c.score, true
	}
	if c.origin != OriginConsolidated {
		return 0, false
	}
	switch v := c.attributes[AttrScorePrefix+string(origin)].(type) {
	case int:
		return v, true
	case float64:
		// JSON 역직렬화 후에는 float64
		return int(v), true
	default:
		return 0, false
	}
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
