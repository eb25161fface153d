package analysis

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ppiankov/stackguard/internal/cache"
	"github.com/ppiankov/stackguard/internal/interaction"
	"github.com/ppiankov/stackguard/internal/llm"
	"github.com/ppiankov/stackguard/internal/lookup"
	"github.com/ppiankov/stackguard/internal/metrics"
	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/ratelimit"
	"github.com/ppiankov/stackguard/internal/resilience"
	"github.com/ppiankov/stackguard/internal/score"
	"github.com/ppiankov/stackguard/internal/stack"
	"github.com/ppiankov/stackguard/internal/worker"
)

// Dependencies overrides the collaborators New would otherwise build from
// configuration. Every field is optional.
type Dependencies struct {
	// Provider backs tier 1; nil builds one from cfg.LLM
	Provider llm.Provider

	// Lookup resolves barcodes; nil builds the catalog/Open Food Facts chain
	Lookup lookup.Lookup

	// Checker answers pairwise interaction queries; nil uses the remote
	// endpoint when configured, else the built-in rules
	Checker interaction.Checker

	// Stacks supplies the current stack when a request carries none
	Stacks stack.Store

	Logger *slog.Logger
}

// New creates an orchestrator from configuration. A nil cfg uses defaults.
func New(cfg *model.Config, deps Dependencies) *Orchestrator {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := metrics.New()

	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	}, logger)
	breaker.OnStateChange(func(_, to resilience.CircuitState) {
		m.SetCircuitState(to.String())
	})

	o := &Orchestrator{
		rateLimitEnabled: cfg.RateLimit.Enabled,
		limiter:          ratelimit.NewLimiter(cfg.RateLimit.MaxScans, cfg.RateLimit.Window),
		breaker:          breaker,
		retry:            retryOptions(cfg.Retry, logger),
		lookupRetry:      lookupRetryOptions(logger),
		scorer:           score.NewScorer(),
		lookup:           deps.Lookup,
		stacks:           deps.Stacks,
		metrics:          m,
		logger:           logger,
		now:              time.Now,
	}

	if cfg.Cache.Enabled {
		o.results = cache.New(cfg.Cache, logger)
	}

	provider := deps.Provider
	if provider == nil {
		p, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, logger))
		if err != nil {
			logger.Warn("inference provider unavailable, AI tier disabled", "provider", cfg.LLM.Provider, "error", err)
		} else {
			provider = p
		}
	}
	if provider != nil {
		o.enhancer = llm.NewEnhancer(provider, cfg.LLM.ClassifyTopN, logger)
	}

	if o.lookup == nil {
		o.lookup = defaultLookup(cfg.Lookup, logger)
	}

	checker := deps.Checker
	if checker == nil {
		if cfg.Interaction.Endpoint != "" {
			checker = interaction.NewHTTPChecker(cfg.Interaction.Endpoint, nil, cfg.Interaction.CallTimeout)
		} else {
			checker = interaction.NewRuleChecker()
		}
	}

	var pacer *worker.Limiter
	if cfg.Interaction.RequestsPerSecond > 0 {
		pacer = worker.NewLimiter(cfg.Interaction.RequestsPerSecond, cfg.Interaction.Burst)
	}
	o.interactions = interaction.NewEngine(checker, interaction.Options{
		CallTimeout:         cfg.Interaction.CallTimeout,
		ContinueOnRateLimit: cfg.Interaction.ContinueOnRateLimit,
		Pacer:               pacer,
		Observer:            m.RecordPairwiseCheck,
		Logger:              logger,
	})

	return o
}

func retryOptions(cfg model.RetryConfig, logger *slog.Logger) resilience.RetryOptions {
	opts := resilience.RetryOptions{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
		Multiplier:     cfg.Multiplier,
		Jitter:         cfg.Jitter,
		AttemptTimeout: cfg.AttemptTimeout,
		RetryCondition: resilience.IsTransient,
		Logger:         logger,
	}
	if err := opts.Validate(); err != nil {
		logger.Warn("invalid retry configuration, using defaults", "error", err)
		opts = resilience.DefaultRetryOptions()
		opts.Logger = logger
	}
	return opts
}

// lookupRetryOptions retries a flaky lookup once; not-found is final
func lookupRetryOptions(logger *slog.Logger) resilience.RetryOptions {
	opts := resilience.DefaultRetryOptions()
	opts.MaxRetries = 1
	opts.BaseDelay = 500 * time.Millisecond
	opts.AttemptTimeout = 0
	opts.RetryCondition = func(err error) bool {
		return !errors.Is(err, lookup.ErrNotFound) && resilience.IsTransient(err)
	}
	opts.Logger = logger
	return opts
}

func defaultLookup(cfg model.LookupConfig, logger *slog.Logger) lookup.Lookup {
	var chain lookup.Chain
	if cfg.CatalogFile != "" {
		catalog, err := lookup.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			logger.Warn("failed to load product catalog", "path", cfg.CatalogFile, "error", err)
		} else {
			chain = append(chain, catalog)
		}
	}
	return append(chain, lookup.NewOpenFoodFacts(cfg.BaseURL, cfg.UserAgent, cfg.Timeout))
}
