package commands

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/yaml.v3"

	"github.com/wonny/conviction/internal/brain"
	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/data/repos"
	"github.com/wonny/conviction/internal/external/marketdata"
	"github.com/wonny/conviction/internal/external/openinsider"
	"github.com/wonny/conviction/internal/metrics"
	"github.com/wonny/conviction/internal/s0_filings"
	"github.com/wonny/conviction/internal/s2_components"
	"github.com/wonny/conviction/internal/strategyconfig"
	"github.com/wonny/conviction/pkg/config"
	"github.com/wonny/conviction/pkg/database"
	"github.com/wonny/conviction/pkg/httputil"
	"github.com/wonny/conviction/pkg/logger"
	"github.com/wonny/conviction/pkg/redis"
)

// cacheKeyPrefix namespaces every Redis key written by this service
const cacheKeyPrefix = "conviction"

// app holds the wired scoring stack shared by the commands
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB // nil without a database
	redis  *redis.Client
	cache  *redis.Cache
	policy *strategyconfig.Config
	snap   *strategyconfig.PolicySnapshot

	metricsRegistry *prometheus.Registry
	recorder        *metrics.Recorder

	transactions contracts.TransactionRepository // nil without a database
	results      contracts.ResultRepository      // nil without a database
	orchestrator *brain.Orchestrator
	windowDays   int
}

// appOptions selects optional parts of the stack
type appOptions struct {
	policyPath  string
	needDB      bool
	useDB       bool // connect when DATABASE_URL is set
	useScraper  bool // orchestrator source = openinsider instead of the DB
	dryRunStore bool // never attach the result store
}

// newApp loads configuration and wires the scoring pipeline
func newApp(opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" && env != cfg.Env {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// 1. Weight policy
	if err := a.loadPolicy(opts.policyPath); err != nil {
		return nil, err
	}

	// 2. Redis (optional)
	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		a.redis = redis.NewFromClient(nil)
	}
	a.cache = redis.NewCache(a.redis, cacheKeyPrefix)

	// 3. Database (optional unless needDB)
	if opts.needDB || (opts.useDB && cfg.Database.URL != "") {
		a.db, err = database.New(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.transactions = repos.NewTransactionRepository(a.db.Pool)
		if !opts.dryRunStore {
			a.results = repos.NewCachedResultRepository(repos.NewResultRepository(a.db.Pool), a.cache, log)
		}
	}

	// 4. Metrics
	a.metricsRegistry = prometheus.NewRegistry()
	a.metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.MetricsEnabled {
		a.recorder = metrics.New(a.metricsRegistry)
	}

	// 5. Scoring pipeline
	var source contracts.TransactionSource
	if opts.useScraper {
		source = a.scraper()
	} else if a.transactions != nil {
		source = a.transactions
	}
	if err := a.buildOrchestrator(source); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// loadPolicy reads the policy file, falling back to the built-in default
func (a *app) loadPolicy(flagPath string) error {
	path := flagPath
	if path == "" {
		path = a.cfg.Scoring.PolicyPath
	}

	var (
		cfg  *strategyconfig.Config
		data []byte
		err  error
	)
	if path != "" {
		cfg, data, err = strategyconfig.Load(path)
		if err != nil {
			return fmt.Errorf("load policy: %w", err)
		}
	} else {
		cfg = strategyconfig.Default()
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("encode default policy: %w", err)
		}
	}

	for _, w := range strategyconfig.Warn(cfg) {
		a.log.WithFields(map[string]interface{}{
			"code":    w.Code,
			"message": w.Message,
		}).Warn("Policy warning")
	}

	snap, err := strategyconfig.NewPolicySnapshot(cfg, data)
	if err != nil {
		return fmt.Errorf("policy snapshot: %w", err)
	}

	a.policy = cfg
	a.snap = snap
	a.log.WithFields(map[string]interface{}{
		"policy_id": snap.PolicyID,
		"version":   snap.PolicyVersion,
		"path":      path,
	}).Info("Weight policy loaded")
	return nil
}

// scraper builds the openinsider client behind the shared rate limiter
func (a *app) scraper() *openinsider.Client {
	limiter := redis.NewRateLimiter(a.redis, cacheKeyPrefix)
	httpClient := httputil.New(a.cfg, a.log).
		WithLocalLimit(a.cfg.Scraper.RequestsPerSec, 1).
		WithRateLimiter(limiter, redis.FilingScraperRateLimit)
	return openinsider.NewClient(httpClient, a.cfg.Scraper.BaseURL, a.log)
}

// marketData returns nil when no market data API is configured
func (a *app) marketData() contracts.MarketData {
	if a.cfg.MarketData.BaseURL == "" {
		a.log.Warn("MARKET_DATA_BASE_URL not set, timing, short interest and red-flag market checks unavailable")
		return nil
	}
	limiter := redis.NewRateLimiter(a.redis, cacheKeyPrefix)
	httpClient := httputil.NewWithTimeout(a.cfg, a.log, a.cfg.MarketData.Timeout).
		WithLocalLimit(a.cfg.MarketData.RequestsPerSec, 1).
		WithRateLimiter(limiter, redis.MarketDataRateLimit)
	return marketdata.NewClient(a.cfg.MarketData, httpClient, a.cache, a.log)
}

// buildOrchestrator wires S0 → S4 around the given source
func (a *app) buildOrchestrator(source contracts.TransactionSource) error {
	policy, err := strategyconfig.ToPolicy(a.policy)
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	market := a.marketData()
	registry := s2_components.NewRegistry(a.policy.ProviderTimeout(), a.log).Register(
		s2_components.NewInsiderClusterProvider(),
		s2_components.NewEntryTimingProvider(),
		s2_components.NewStalenessProvider(),
		s2_components.NewFilingSpeedProvider(),
		s2_components.NewCommitmentProvider(a.policy.Providers.CommitmentLookbackDays),
		s2_components.NewRedFlagProvider(market),
		s2_components.NewCachedProvider(s2_components.NewShortInterestProvider(market), a.cache, a.log),
	)

	// 외부 컴포넌트 서비스 (options_flow, sentiment 등)
	if base := a.policy.Providers.RemoteBaseURL; base != "" {
		remoteHTTP := httputil.New(a.cfg, a.log).
			WithRateLimiter(redis.NewRateLimiter(a.redis, cacheKeyPrefix), redis.ComponentServiceRateLimit)
		for _, name := range remoteComponents(policy, registry.Names()) {
			registry.Register(s2_components.NewCachedProvider(s2_components.NewRemoteProvider(name, base, remoteHTTP), a.cache, a.log))
		}
	}

	windowDays := a.policy.Accumulation.WindowDays
	if windowDays <= 0 {
		windowDays = a.cfg.Scoring.AccumulationWindowDays
	}
	a.windowDays = windowDays
	maxAge := a.policy.Staleness.MaxAgeDays
	if maxAge <= 0 {
		maxAge = a.cfg.Scoring.MaxSignalAgeDays
	}

	scorer, err := brain.NewScorer(brain.ScorerConfig{
		Policy:             policy,
		AccumulationPolicy: a.policy.AccumulationPolicy(),
		WindowDays:         windowDays,
		MaxAgeDays:         maxAge,
	}, registry, market, a.log)
	if err != nil {
		return fmt.Errorf("create scorer: %w", err)
	}

	batch := brain.NewBatchCoordinator(scorer, brain.BatchConfig{
		SequentialThreshold: a.cfg.Scoring.SequentialThreshold,
		MaxWorkers:          a.cfg.Scoring.MaxWorkers,
	}, a.recorder, a.log)

	a.orchestrator = brain.NewOrchestrator(source, s0_filings.NewNormalizer(a.log), batch, a.results, a.log)
	return nil
}

// remoteComponents lists weighted components not served locally
func remoteComponents(policy contracts.WeightPolicy, local []string) []string {
	served := make(map[string]bool, len(local))
	for _, name := range local {
		served[name] = true
	}

	var out []string
	for _, name := range policy.ComponentNames() {
		if !served[name] && policy.IsWeighted(name) {
			out = append(out, name)
		}
	}
	return out
}

// Close releases connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "redis close: %v\n", err)
		}
	}
}
