package strategyconfig

// Config는 스크리닝 전략의 전체 설정 (택소노미 + 스캐너 파라미터)
// ⭐ SSOT: 태그 추가/점수 변경은 YAML 수정만으로 (재컴파일 없음)
type Config struct {
	Meta          Meta          `yaml:"meta" json:"meta"`
	Taxonomy      Taxonomy      `yaml:"taxonomy" json:"taxonomy"`
	Momentum      Momentum      `yaml:"momentum" json:"momentum"`
	Structural    Structural    `yaml:"structural" json:"structural"`
	Consolidation Consolidation `yaml:"consolidation" json:"consolidation"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	Version     string `yaml:"version" json:"version" validate:"required"`
	Description string `yaml:"description" json:"description"`
}

// TagClass is the scoring class of a taxonomy tag
type TagClass string

const (
	ClassStructural TagClass = "structural" // 핵심 근거
	ClassAuxiliary  TagClass = "auxiliary"  // 보너스 (합산 상한)
	ClassVeto       TagClass = "veto"       // 노이즈 필터 (점수 0)
)

// Namespace separates event-defining tags from explanatory ones
type Namespace string

const (
	// NamespaceEvent 무슨 일이 일어났는가 (deep validation이 읽을 수 있는 유일한 태그)
	NamespaceEvent Namespace = "event"
	// NamespaceExplanatory 왜 그 점수가 나왔는가
	NamespaceExplanatory Namespace = "explanatory"
)

// Taxonomy 태그 분류 체계
type Taxonomy struct {
	StructuralCap int       `yaml:"structural_cap" json:"structural_cap" default:"90" validate:"min=0,max=100"`
	AuxiliaryCap  int       `yaml:"auxiliary_cap" json:"auxiliary_cap" default:"10" validate:"min=0,max=100"`
	Tags          []TagRule `yaml:"tags" json:"tags" validate:"required,min=1,dive"`
}

// TagRule is one named rule of the taxonomy
type TagRule struct {
	Name        string      `yaml:"name" json:"name" validate:"required"`
	Class       TagClass    `yaml:"class" json:"class" validate:"required,oneof=structural auxiliary veto"`
	Namespace   Namespace   `yaml:"namespace" json:"namespace" default:"explanatory" validate:"oneof=event explanatory"`
	Points      int         `yaml:"points" json:"points" validate:"min=0,max=100"`
	When        []Condition `yaml:"when" json:"when" validate:"required,min=1,dive"`
	Description string      `yaml:"description" json:"description"`
}

// Condition compares one named feature against a threshold
type Condition struct {
	Feature string  `yaml:"feature" json:"feature" validate:"required"`
	Op      string  `yaml:"op" json:"op" validate:"required"`
	Value   float64 `yaml:"value" json:"value"`
}

// Momentum 추세 스캐너 설정
type Momentum struct {
	MinScore  int         `yaml:"min_score" json:"min_score" default:"70" validate:"min=0,max=100"`
	Limit     int         `yaml:"limit" json:"limit" default:"50" validate:"min=0"`
	Filters   []Condition `yaml:"filters" json:"filters" validate:"dive"`
	Buckets   []Bucket    `yaml:"buckets" json:"buckets" validate:"required,min=1,dive"`
	Penalties []Bucket    `yaml:"penalties" json:"penalties" validate:"dive"`
	Tags      []TagEmit   `yaml:"tags" json:"tags" validate:"dive"`
	StopPct   float64     `yaml:"stop_pct" json:"stop_pct" default:"5" validate:"gt=0,lt=100"`
}

// Bucket is a capped score component; the first matching step wins
type Bucket struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Cap   int    `yaml:"cap" json:"cap" validate:"min=0,max=100"`
	Steps []Step `yaml:"steps" json:"steps" validate:"required,min=1,dive"`
}

// Step awards points when its condition holds
type Step struct {
	Condition `yaml:",inline"`
	Points    int `yaml:"points" json:"points" validate:"min=0,max=100"`
}

// TagEmit attaches a taxonomy tag when all conditions hold (점수와 무관)
type TagEmit struct {
	Name string      `yaml:"name" json:"name" validate:"required"`
	When []Condition `yaml:"when" json:"when" validate:"required,min=1,dive"`
}

// Structural 구조적 이상 스캐너 설정
type Structural struct {
	MinScore int `yaml:"min_score" json:"min_score" default:"60" validate:"min=0,max=100"`
	Limit    int `yaml:"limit" json:"limit" default:"50" validate:"min=0"`
}

// Consolidation 병합 단계 설정
type Consolidation struct {
	Limit int `yaml:"limit" json:"limit" default:"0" validate:"min=0"` // 0 = 제한 없음
}

// Rule finds a taxonomy rule by name
func (t *Taxonomy) Rule(name string) (TagRule, bool) {
	for _, r := range t.Tags {
		if r.Name == name {
			return r, true
		}
	}
	return TagRule{}, false
}

// PointsSum returns the raw point sum of a class (before caps)
func (t *Taxonomy) PointsSum(class TagClass) int {
	sum := 0
	for _, r := range t.Tags {
		if r.Class == class {
			sum += r.Points
		}
	}
	return sum
}

// CapSum returns the sum of bucket caps
func CapSum(buckets []Bucket) int {
	sum := 0
	for _, b := range buckets {
		sum += b.Cap
	}
	return sum
}
