// Package taxonomy evaluates the tag taxonomy against feature vectors.
package taxonomy

import (
	"sort"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/strategyconfig"
)

// Engine scores feature vectors with a validated taxonomy.
// Rules are data: adding a tag or changing its points only touches YAML.
type Engine struct {
	structuralCap int
	auxiliaryCap  int
	rules         []strategyconfig.TagRule
	byName        map[string]strategyconfig.TagRule
}

// Result is the outcome of evaluating one feature vector
type Result struct {
	Score            int      `json:"score"`
	Tags             []string `json:"tags"`
	Vetoed           bool     `json:"vetoed"`
	VetoTags         []string `json:"veto_tags,omitempty"`
	StructuralPoints int      `json:"structural_points"` // 상한 적용 후
	AuxiliaryPoints  int      `json:"auxiliary_points"`  // 상한 적용 후
}

// NewEngine builds an engine from a taxonomy section.
// The taxonomy is expected to have passed strategyconfig.Validate.
func NewEngine(tax strategyconfig.Taxonomy) *Engine {
	rules := make([]strategyconfig.TagRule, len(tax.Tags))
	copy(rules, tax.Tags)

	byName := make(map[string]strategyconfig.TagRule, len(rules))
	for _, r := range rules {
		byName[r.Name] = r
	}

	return &Engine{
		structuralCap: tax.StructuralCap,
		auxiliaryCap:  tax.AuxiliaryCap,
		rules:         rules,
		byName:        byName,
	}
}

// Evaluate matches every rule and computes the bounded score:
//
//	score = min(100, min(Σstructural, structural_cap) + min(Σauxiliary, auxiliary_cap))
//
// Any matching veto forces score 0; the veto tag stays on the result.
func (e *Engine) Evaluate(fv *contracts.FeatureVector) Result {
	var structural, auxiliary int
	tags := make([]string, 0, 4)
	var vetoTags []string

	for _, rule := range e.rules {
		if !strategyconfig.AllMatch(rule.When, fv) {
			continue
		}
		tags = append(tags, rule.Name)

		switch rule.Class {
		case strategyconfig.ClassStructural:
			structural += rule.Points
		case strategyconfig.ClassAuxiliary:
			auxiliary += rule.Points
		case strategyconfig.ClassVeto:
			vetoTags = append(vetoTags, rule.Name)
		}
	}

	structural = minInt(structural, e.structuralCap)
	auxiliary = minInt(auxiliary, e.auxiliaryCap)
	sort.Strings(tags)

	res := Result{
		Tags:             tags,
		StructuralPoints: structural,
		AuxiliaryPoints:  auxiliary,
	}
	if len(vetoTags) > 0 {
		sort.Strings(vetoTags)
		res.Vetoed = true
		res.VetoTags = vetoTags
		return res
	}

	res.Score = minInt(100, structural+auxiliary)
	return res
}

// Vetoes returns the sorted veto tags matching fv.
// Scanners with their own scoring formula use it to honor the veto rules.
func (e *Engine) Vetoes(fv *contracts.FeatureVector) []string {
	var out []string
	for _, rule := range e.rules {
		if rule.Class == strategyconfig.ClassVeto && strategyconfig.AllMatch(rule.When, fv) {
			out = append(out, rule.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Class returns the class of a tag
func (e *Engine) Class(tag string) (strategyconfig.TagClass, bool) {
	r, ok := e.byName[tag]
	return r.Class, ok
}

// Namespace returns the namespace of a tag
func (e *Engine) Namespace(tag string) (strategyconfig.Namespace, bool) {
	r, ok := e.byName[tag]
	return r.Namespace, ok
}

// IsEventTag reports whether tag belongs to the event namespace
func (e *Engine) IsEventTag(tag string) bool {
	ns, ok := e.Namespace(tag)
	return ok && ns == strategyconfig.NamespaceEvent
}

// EventTags filters tags down to the event namespace.
// ⭐ SSOT: deep validation은 event 태그만 읽음 (explanatory 태그 사용 금지)
func (e *Engine) EventTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if e.IsEventTag(t) {
			out = append(out, t)
		}
	}
	return out
}

// ExplanatoryTags filters tags down to the explanatory namespace
func (e *Engine) ExplanatoryTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if ns, ok := e.Namespace(t); ok && ns == strategyconfig.NamespaceExplanatory {
			out = append(out, t)
		}
	}
	return out
}

// Rules returns a copy of the rules in declaration order
func (e *Engine) Rules() []strategyconfig.TagRule {
	out := make([]strategyconfig.TagRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Known reports whether a tag name exists in the taxonomy
func (e *Engine) Known(tag string) bool {
	_, ok := e.byName[tag]
	return ok
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
