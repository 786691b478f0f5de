package scanner

import (
	"context"
	"strings"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/strategyconfig"
	"github.com/wonny/aegis/v13/screener/internal/taxonomy"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// Structural scores instruments purely from matched taxonomy tags.
// ⭐ SSOT: 구조적 이상 스캐너 (별도 공식 없음, 택소노미만 사용)
type Structural struct {
	cfg    strategyconfig.Structural
	engine *taxonomy.Engine
	pool   pool
}

// NewStructural creates the structural-anomaly scanner
func NewStructural(cfg strategyconfig.Structural, engine *taxonomy.Engine, provider contracts.FeatureProvider, log *logger.Logger) *Structural {
	return &Structural{
		cfg:    cfg,
		engine: engine,
		pool: pool{
			origin:   contracts.OriginStructural,
			provider: provider,
			logger:   log.WithComponent("scanner").WithField("origin", string(contracts.OriginStructural)),
		},
	}
}

// Name returns the scanner origin
func (s *Structural) Name() contracts.Origin {
	return contracts.OriginStructural
}

// DefaultMinScore returns the configured min_score
func (s *Structural) DefaultMinScore() int {
	return s.cfg.MinScore
}

// DefaultLimit returns the configured limit
func (s *Structural) DefaultLimit() int {
	return s.cfg.Limit
}

// Scan evaluates the batch (see contracts.Scanner).
// Vetoed instruments are emitted with score 0 so the veto stays auditable.
func (s *Structural) Scan(ctx context.Context, batch contracts.Batch, minScore, limit int, opts contracts.ScanOptions) ([]contracts.Candidate, error) {
	return s.pool.run(ctx, batch, minScore, limit, opts, s.evaluate)
}

func (s *Structural) evaluate(fv *contracts.FeatureVector) (evaluation, bool) {
	res := s.engine.Evaluate(fv)
	if len(res.Tags) == 0 {
		return evaluation{}, false
	}

	attrs := map[string]interface{}{
		"structural_points":              res.StructuralPoints,
		"auxiliary_points":               res.AuxiliaryPoints,
		contracts.FeatureVolatilityRatio: fv.VolatilityRatio,
		contracts.FeatureVolumeRatio:     fv.VolumeRatio,
		contracts.FeatureStopRiskPct:     fv.StopRiskPct,
	}
	if res.Vetoed {
		attrs[contracts.AttrVeto] = strings.Join(res.VetoTags, ",")
	}

	params := contracts.CandidateParams{
		ReferencePrice: fv.Close,
		Score:          res.Score,
		Tags:           res.Tags,
		Attributes:     attrs,
	}
	if fv.SwingStop > 0 && fv.SwingStop < fv.Close {
		params.StopReference = floatPtr(fv.SwingStop)
		params.RiskPercent = floatPtr(fv.StopRiskPct)
	}

	return evaluation{params: params, vetoed: res.Vetoed}, true
}
