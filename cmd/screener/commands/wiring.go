package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/brain"
	"github.com/wonny/aegis/v13/screener/internal/contracts"
	"github.com/wonny/aegis/v13/screener/internal/features"
	"github.com/wonny/aegis/v13/screener/internal/metrics"
	"github.com/wonny/aegis/v13/screener/internal/report"
	"github.com/wonny/aegis/v13/screener/internal/scanner"
	"github.com/wonny/aegis/v13/screener/internal/selection"
	"github.com/wonny/aegis/v13/screener/internal/strategyconfig"
	"github.com/wonny/aegis/v13/screener/internal/taxonomy"
	"github.com/wonny/aegis/v13/screener/pkg/config"
	"github.com/wonny/aegis/v13/screener/pkg/database"
	"github.com/wonny/aegis/v13/screener/pkg/logger"
	"github.com/wonny/aegis/v13/screener/pkg/redis"
)

// app holds the wired dependencies shared by commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	cache    *redis.Cache
	strategy *strategyconfig.Config
	version  string
	engine   *taxonomy.Engine
	bars     *features.BarRepository
	provider *features.Provider
	recorder *metrics.Recorder
	orch     *brain.Orchestrator
	repo     *selection.Repository
	store    report.Store
}

// newApp wires config → logger → strategy → db/redis → provider → scanners → orchestrator
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load strategy (설정 오류는 DB 연결 전에 중단)
	strategy, version, err := loadStrategy(cfg)
	if err != nil {
		return nil, err
	}

	// 4. Connect to database
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Connect to Redis (비활성화 시 no-op)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(rc, "screener")

	// 6. Feature provider over the bar repository
	bars := features.NewBarRepository(db.Pool)
	provider := features.NewProvider(bars, cache, features.ProviderConfig{
		RPS:      cfg.Screener.ProviderRPS,
		Burst:    cfg.Screener.ProviderBurst,
		CacheTTL: cfg.Screener.FeatureCacheTTL,
	}, log)

	// 7. Scanners + orchestrator
	engine := taxonomy.NewEngine(strategy.Taxonomy)
	momentum := scanner.NewMomentum(strategy.Momentum, engine, provider, log)
	structural := scanner.NewStructural(strategy.Structural, engine, provider, log)
	plans := []brain.ScanPlan{
		{Scanner: momentum, MinScore: momentum.DefaultMinScore(), Limit: momentum.DefaultLimit()},
		{Scanner: structural, MinScore: structural.DefaultMinScore(), Limit: structural.DefaultLimit()},
	}

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.New()
	}

	orch := brain.NewOrchestrator(
		provider,
		plans,
		selection.NewConsolidator(strategy.Consolidation.Limit, log),
		recorder,
		log,
	)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    rc,
		cache:    cache,
		strategy: strategy,
		version:  version,
		engine:   engine,
		bars:     bars,
		provider: provider,
		recorder: recorder,
		orch:     orch,
		repo:     selection.NewRepository(db.Pool),
		store:    report.NewStore(cache),
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func loadStrategy(cfg *config.Config) (*strategyconfig.Config, string, error) {
	path := strategyFile
	if path == "" {
		path = cfg.Screener.StrategyPath
	}
	strategy, _, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		return nil, "", fmt.Errorf("load strategy: %w", err)
	}
	return strategy, strategyconfig.VersionTag(strategy), nil
}

// parseDate parses YYYY-MM-DD; empty means today
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return contracts.TruncateDate(time.Now()), nil
	}
	d, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	return d, nil
}

// splitList parses a comma separated flag
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
