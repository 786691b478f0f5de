package strategyconfig

import (
	"errors"
	"fmt"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Ops supported by conditions
var supportedOps = map[string]struct{}{
	">": {}, ">=": {}, "<": {}, "<=": {}, "==": {},
}

// Validate checks budget and reference constraints that struct tags cannot express.
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Taxonomy ===
	tax := cfg.Taxonomy
	if tax.StructuralCap+tax.AuxiliaryCap > 100 {
		return ValidationError{"taxonomy", fmt.Sprintf("structural_cap + auxiliary_cap must be <= 100, got %d", tax.StructuralCap+tax.AuxiliaryCap)}
	}

	seen := make(map[string]struct{}, len(tax.Tags))
	for i, rule := range tax.Tags {
		field := fmt.Sprintf("taxonomy.tags[%d]", i)
		if _, dup := seen[rule.Name]; dup {
			return ValidationError{field, fmt.Sprintf("duplicate tag name %q", rule.Name)}
		}
		seen[rule.Name] = struct{}{}

		switch rule.Class {
		case ClassVeto:
			if rule.Points != 0 {
				return ValidationError{field + ".points", "veto tags carry no points"}
			}
		case ClassStructural:
			if rule.Points > tax.StructuralCap {
				return ValidationError{field + ".points", fmt.Sprintf("%d exceeds structural_cap=%d", rule.Points, tax.StructuralCap)}
			}
		case ClassAuxiliary:
			if rule.Points > tax.AuxiliaryCap {
				return ValidationError{field + ".points", fmt.Sprintf("%d exceeds auxiliary_cap=%d", rule.Points, tax.AuxiliaryCap)}
			}
		}

		if err := validateConditions(rule.When, field+".when"); err != nil {
			return err
		}
	}

	// === Momentum ===
	m := cfg.Momentum
	if sum := CapSum(m.Buckets); sum > 100 {
		return ValidationError{"momentum.buckets", fmt.Sprintf("caps must sum to <= 100, got %d", sum)}
	}
	if err := validateConditions(m.Filters, "momentum.filters"); err != nil {
		return err
	}
	for i, b := range append(append([]Bucket{}, m.Buckets...), m.Penalties...) {
		for j, s := range b.Steps {
			if err := validateCondition(s.Condition, fmt.Sprintf("momentum.%s.steps[%d]", b.Name, j)); err != nil {
				return err
			}
		}
		if b.Cap == 0 {
			return ValidationError{fmt.Sprintf("momentum bucket[%d] %s", i, b.Name), "cap must be > 0"}
		}
	}
	for i, emit := range m.Tags {
		field := fmt.Sprintf("momentum.tags[%d]", i)
		if _, ok := tax.Rule(emit.Name); !ok {
			return ValidationError{field, fmt.Sprintf("tag %q is not in the taxonomy", emit.Name)}
		}
		if err := validateConditions(emit.When, field+".when"); err != nil {
			return err
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning
	tax := cfg.Taxonomy

	// 보조 점수 상한 권장 범위: 10~20
	if tax.AuxiliaryCap < 10 || tax.AuxiliaryCap > 20 {
		warnings = append(warnings, Warning{
			Code:    "AUX_CAP_RANGE",
			Message: fmt.Sprintf("auxiliary_cap=%d outside recommended 10-20", tax.AuxiliaryCap),
		})
	}

	if sum := tax.PointsSum(ClassStructural); sum < tax.StructuralCap {
		warnings = append(warnings, Warning{
			Code:    "STRUCTURAL_CAP_UNREACHABLE",
			Message: fmt.Sprintf("structural points sum %d < structural_cap %d", sum, tax.StructuralCap),
		})
	}

	hasEvent := false
	for _, rule := range tax.Tags {
		if rule.Namespace == NamespaceEvent {
			hasEvent = true
			if rule.Class == ClassVeto {
				warnings = append(warnings, Warning{
					Code:    "VETO_EVENT_TAG",
					Message: fmt.Sprintf("veto tag %s is in the event namespace", rule.Name),
				})
			}
		}
	}
	if !hasEvent {
		warnings = append(warnings, Warning{
			Code:    "NO_EVENT_TAGS",
			Message: "no event-namespace tags: deep validation will have nothing to check",
		})
	}

	if cfg.Momentum.MinScore < 50 {
		warnings = append(warnings, Warning{
			Code:    "LOW_MOMENTUM_MIN_SCORE",
			Message: "momentum.min_score < 50: 후보 과다 가능",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateConditions(conds []Condition, field string) error {
	for i, c := range conds {
		if err := validateCondition(c, fmt.Sprintf("%s[%d]", field, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(c Condition, field string) error {
	if !contracts.IsKnownFeature(c.Feature) {
		return ValidationError{field + ".feature", fmt.Sprintf("unknown feature %q", c.Feature)}
	}
	if _, ok := supportedOps[c.Op]; !ok {
		return ValidationError{field + ".op", fmt.Sprintf("unsupported op %q", c.Op)}
	}
	return nil
}

// Evaluate applies a condition to a feature vector.
// Unknown features never match.
func (c Condition) Evaluate(fv *contracts.FeatureVector) bool {
	v, ok := fv.Lookup(c.Feature)
	if !ok {
		return false
	}
	switch c.Op {
	case ">":
		return v > c.Value
	case ">=":
		return v >= c.Value
	case "<":
		return v < c.Value
	case "<=":
		return v <= c.Value
	case "==":
		return v == c.Value
	default:
		return false
	}
}

// AllMatch reports whether every condition holds
func AllMatch(conds []Condition, fv *contracts.FeatureVector) bool {
	for _, c := range conds {
		if !c.Evaluate(fv) {
			return false
		}
	}
	return true
}

// IsConfigurationError reports whether err came from strategy validation
func IsConfigurationError(err error) bool {
	kind, ok := contracts.KindOf(err)
	if ok && kind == contracts.KindConfiguration {
		return true
	}
	var ve ValidationError
	return errors.As(err, &ve)
}
