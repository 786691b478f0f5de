// Package features computes and serves per-instrument feature vectors.
package features

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/pkg/breaker"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
	"github.com/wonny/aegis/v13/screener/pkg/redis"
)

// BarSource is the storage the provider reads bars from
type BarSource interface {
	ListInstruments(ctx context.Context) ([]string, error)
	LatestBars(ctx context.Context, instrumentID string, asOf time.Time, n int) ([]contracts.Bar, error)
	BarsOn(ctx context.Context, date time.Time) ([]contracts.Bar, error)
}

// ProviderConfig 피처 제공자 설정
type ProviderConfig struct {
	RPS      float64       // 바 소스 초당 요청 한도 (0 = 무제한)
	Burst    int           // 버스트 허용량
	CacheTTL time.Duration // Redis 캐시 TTL
}

// Provider implements contracts.FeatureProvider over a BarSource.
// ⭐ SSOT: 스캐너가 읽는 피처는 모두 여기를 거침
//
// Reads are rate limited and guarded by a circuit breaker; computed vectors
// are cached in Redis when a cache is configured.
type Provider struct {
	source   BarSource
	cache    *redis.Cache
	cacheTTL time.Duration
	limiter  *rate.Limiter
	breaker  *breaker.Breaker
	logger   *logger.Logger

	mu      sync.RWMutex
	asOf    time.Time
	pctiles map[string]float64 // 당일 거래대금 백분위 (Refresh에서 계산)
}

// NewProvider creates a provider. cache may be nil.
func NewProvider(source BarSource, cache *redis.Cache, cfg ProviderConfig, log *logger.Logger) *Provider {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	settings := breaker.DefaultSettings("bar-source")
	// 예산 초과로 취소된 읽기는 소스 장애가 아님
	settings.Ignore = []error{contracts.ErrNotAvailable, context.Canceled, context.DeadlineExceeded}

	return &Provider{
		source:   source,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  breaker.New(settings),
		logger:   log.WithComponent("feature_provider"),
		pctiles:  make(map[string]float64),
	}
}

// Refresh prepares cross-sectional data for asOf and reports coverage
func (p *Provider) Refresh(ctx context.Context, asOf time.Time) (*contracts.DataSnapshot, error) {
	asOf = contracts.TruncateDate(asOf)

	ids, err := p.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}

	v, err := p.guarded(ctx, func() (interface{}, error) {
		return p.source.BarsOn(ctx, asOf)
	})
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", asOf.Format(contracts.DateLayout), err)
	}
	bars := v.([]contracts.Bar)

	dollarVolumes := make(map[string]float64, len(bars))
	for _, b := range bars {
		dollarVolumes[b.InstrumentID] = b.DollarVolume()
	}

	p.mu.Lock()
	p.asOf = asOf
	p.pctiles = Percentiles(dollarVolumes)
	p.mu.Unlock()

	snapshot := &contracts.DataSnapshot{
		Date:               asOf,
		TotalInstruments:   len(ids),
		CoveredInstruments: len(bars),
	}

	p.logger.WithFields(map[string]interface{}{
		"as_of":    asOf.Format(contracts.DateLayout),
		"total":    snapshot.TotalInstruments,
		"covered":  snapshot.CoveredInstruments,
		"coverage": fmt.Sprintf("%.1f%%", snapshot.CoverageRate()*100),
	}).Info("Feature provider refreshed")

	return snapshot, nil
}

// ListInstruments returns the instrument universe
func (p *Provider) ListInstruments(ctx context.Context) ([]string, error) {
	v, err := p.guarded(ctx, func() (interface{}, error) {
		return p.source.ListInstruments(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return v.([]string), nil
}

// GetFeatures returns the feature vector of one instrument on asOf.
// Missing or short history yields contracts.ErrNotAvailable.
func (p *Provider) GetFeatures(ctx context.Context, instrumentID string, asOf time.Time) (*contracts.FeatureVector, error) {
	asOf = contracts.TruncateDate(asOf)
	key := redis.FeatureKey(instrumentID, asOf.Format(contracts.DateLayout))

	var cached contracts.FeatureVector
	if found, err := p.cache.Get(ctx, key, &cached); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Feature cache read failed")
	} else if found {
		return &cached, nil
	}

	v, err := p.guarded(ctx, func() (interface{}, error) {
		return p.source.LatestBars(ctx, instrumentID, asOf, LookbackBars)
	})
	if err != nil {
		return nil, err
	}

	fv, err := Compute(v.([]contracts.Bar), asOf)
	if err != nil {
		return nil, err
	}
	fv.InstrumentID = instrumentID

	p.mu.RLock()
	if p.asOf.Equal(asOf) {
		fv.DollarVolumePctile = p.pctiles[instrumentID]
	}
	p.mu.RUnlock()

	if err := p.cache.Set(ctx, key, fv, p.cacheTTL); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Feature cache write failed")
	}
	return fv, nil
}

// BreakerState exposes the bar-source breaker state (closed/open/half-open)
func (p *Provider) BreakerState() string {
	return p.breaker.State()
}

// guarded waits for the rate limiter, then runs fn through the breaker
func (p *Provider) guarded(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		// limiter.Wait는 deadline 초과가 예상될 때 자체 에러를 반환
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limit wait: %w", context.DeadlineExceeded)
	}
	v, err := p.breaker.Execute(fn)
	if errors.Is(err, breaker.ErrOpen) {
		return nil, fmt.Errorf("bar source unavailable: %w", err)
	}
	return v, err
}
