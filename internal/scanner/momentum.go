package scanner

import (
	"context"
	"strings"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/strategyconfig"
	"github.com/wonny/aegis/v13/screener/internal/taxonomy"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

// Momentum rewards sustained price change with confirming volume.
// ⭐ SSOT: 추세 스캐너
//
//	score = Σ min(bucket, cap) - Σ min(penalty, cap), clamped to 0..100
//
// Buckets (trend, volume, breakout, short_term) and the volatility penalty
// come from strategy YAML. The first matching step of a bucket wins.
// Taxonomy veto rules still apply: a vetoed instrument scores 0.
type Momentum struct {
	cfg    strategyconfig.Momentum
	engine *taxonomy.Engine
	pool   pool
}

// NewMomentum creates the momentum scanner
func NewMomentum(cfg strategyconfig.Momentum, engine *taxonomy.Engine, provider contracts.FeatureProvider, log *logger.Logger) *Momentum {
	return &Momentum{
		cfg:    cfg,
		engine: engine,
		pool: pool{
			origin:   contracts.OriginMomentum,
			provider: provider,
			logger:   log.WithComponent("scanner").WithField("origin", string(contracts.OriginMomentum)),
		},
	}
}

// Name returns the scanner origin
func (s *Momentum) Name() contracts.Origin {
	return contracts.OriginMomentum
}

// DefaultMinScore returns the configured min_score
func (s *Momentum) DefaultMinScore() int {
	return s.cfg.MinScore
}

// DefaultLimit returns the configured limit
func (s *Momentum) DefaultLimit() int {
	return s.cfg.Limit
}

// Scan evaluates the batch (see contracts.Scanner)
func (s *Momentum) Scan(ctx context.Context, batch contracts.Batch, minScore, limit int, opts contracts.ScanOptions) ([]contracts.Candidate, error) {
	return s.pool.run(ctx, batch, minScore, limit, opts, s.evaluate)
}

func (s *Momentum) evaluate(fv *contracts.FeatureVector) (evaluation, bool) {
	// 필터 미통과 → 후보 아님
	if !strategyconfig.AllMatch(s.cfg.Filters, fv) {
		return evaluation{}, false
	}

	attrs := map[string]interface{}{
		contracts.FeatureMomentum20D:        fv.Momentum20D,
		contracts.FeatureMomentum5D:         fv.Momentum5D,
		contracts.FeatureVolumeRatio5v20:    fv.VolumeRatio5v20,
		contracts.FeatureCloseToHigh20:      fv.CloseToHigh20,
		contracts.FeaturePriceVsMA20:        fv.PriceVsMA20,
		contracts.FeatureReturnVolatility20: fv.ReturnVolatility20,
	}

	total := 0
	for _, b := range s.cfg.Buckets {
		pts := bucketPoints(b, fv)
		attrs["bucket."+b.Name] = pts
		total += pts
	}
	for _, b := range s.cfg.Penalties {
		pts := bucketPoints(b, fv)
		attrs["penalty."+b.Name] = pts
		total -= pts
	}

	tags := make([]string, 0, len(s.cfg.Tags))
	for _, emit := range s.cfg.Tags {
		if strategyconfig.AllMatch(emit.When, fv) {
			tags = append(tags, emit.Name)
		}
	}

	score := clamp(total, 0, 100)
	vetoes := s.engine.Vetoes(fv)
	if len(vetoes) > 0 {
		score = 0
		tags = append(tags, vetoes...)
		attrs[contracts.AttrVeto] = strings.Join(vetoes, ",")
	}

	return evaluation{
		params: contracts.CandidateParams{
			ReferencePrice: fv.Close,
			Score:          score,
			Tags:           tags,
			StopReference:  floatPtr(fv.Close * (1 - s.cfg.StopPct/100)),
			RiskPercent:    floatPtr(s.cfg.StopPct),
			Attributes:     attrs,
		},
		vetoed: len(vetoes) > 0,
	}, true
}

// bucketPoints returns the first matching step's points, capped
func bucketPoints(b strategyconfig.Bucket, fv *contracts.FeatureVector) int {
	for _, step := range b.Steps {
		if step.Condition.Evaluate(fv) {
			return clamp(step.Points, 0, b.Cap)
		}
	}
	return 0
}
