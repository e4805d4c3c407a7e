// Package services is the single Services container spec.md §9 calls for:
// constructed once at startup, holding every backend/service handle, and
// handed to every entry point (CLI, MCP server, editor hooks) instead of
// static singletons or ad hoc global state.
package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zircote/subcog/internal/capture"
	"github.com/zircote/subcog/internal/config"
	"github.com/zircote/subcog/internal/consolidation"
	"github.com/zircote/subcog/internal/dedup"
	"github.com/zircote/subcog/internal/embeddings"
	"github.com/zircote/subcog/internal/errs"
	"github.com/zircote/subcog/internal/gc"
	"github.com/zircote/subcog/internal/hooks"
	"github.com/zircote/subcog/internal/model"
	"github.com/zircote/subcog/internal/prompts"
	"github.com/zircote/subcog/internal/rbac"
	"github.com/zircote/subcog/internal/recall"
	"github.com/zircote/subcog/internal/secrets"
	"github.com/zircote/subcog/internal/tenant"
	"github.com/zircote/subcog/internal/webhooks"
)

// Domain bundles every service that operates against one resolved
// model.Domain's backends. Callers obtain one via Services.For and should
// not retain it across a Services.Close.
type Domain struct {
	Backends      *tenant.Backends
	Dedup         *dedup.Deduplicator
	Capture       *capture.Service
	Recall        *recall.Service
	Consolidation *consolidation.Service
	Retention     *gc.RetentionGC
	Expiration    *gc.ExpirationGC
}

// Services is the process-wide container (spec.md §9): everything that
// does not vary per domain (config, factory, scrubber, embedder, dispatcher,
// access control, prompt store, LLM-backed hook classifier) lives here
// once; everything that does (the open backend handles and the services
// built on top of them) is opened lazily per domain key and cached.
type Services struct {
	cfg      *config.Config
	logger   *zap.Logger
	factory  *tenant.Factory
	scrubber secrets.Scrubber
	embedder embeddings.Embedder
	dispatch *webhooks.Dispatcher
	access   *rbac.AccessControl
	prompts  prompts.Store
	llm      consolidation.LlmProvider

	mu        sync.Mutex
	byDomain  map[string]*Domain
}

// Option customizes a Services during construction.
type Option func(*Services)

// WithLLM wires an optional consolidation.LlmProvider, used both by
// consolidation summarization and as the hooks.CaptureClassifier backing
// PreCompact's LLM fallback (spec.md §4.10, §4.12).
func WithLLM(llm consolidation.LlmProvider) Option {
	return func(s *Services) { s.llm = llm }
}

// WithPromptStore overrides the default in-process prompts.MemoryStore,
// e.g. with a durable implementation.
func WithPromptStore(store prompts.Store) Option {
	return func(s *Services) { s.prompts = store }
}

// New builds the process-wide Services from cfg: a tenant.Factory routing
// domains to their storage backends, a secrets.Scrubber, an Embedder, a
// webhook Dispatcher built from cfg.Webhooks, and a static rbac
// AccessControl.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scrubber, err := secrets.New(secrets.DefaultConfig())
	if err != nil {
		return nil, errs.OperationFailed("services.new.scrubber", err)
	}

	embedder, err := embeddings.NewFromConfig(embeddings.ProviderConfig{})
	if err != nil {
		return nil, errs.OperationFailed("services.new.embedder", err)
	}

	factory := tenant.NewFactory(tenant.FactoryConfig{
		Project:    toStorageConfig(cfg.Storage.Project, "project", embedder.Dimension()),
		User:       toStorageConfig(cfg.Storage.User, "user", embedder.Dimension()),
		Org:        toStorageConfig(cfg.Storage.Org, "org", embedder.Dimension()),
		OrgEnabled: cfg.Features.OrgScope,
	}, logger)

	var audit webhooks.AuditBackend
	dispatcher := webhooks.New(toEndpoints(cfg.Webhooks), audit, logger)

	s := &Services{
		cfg:      cfg,
		logger:   logger,
		factory:  factory,
		scrubber: scrubber,
		embedder: embedder,
		dispatch: dispatcher,
		access:   rbac.New(),
		prompts:  prompts.NewMemoryStore(),
		byDomain: make(map[string]*Domain),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func toStorageConfig(b config.StorageBackendConfig, collection string, dim int) tenant.StorageConfig {
	kind := tenant.PersistenceSQLite
	if b.Kind == "filetree" {
		kind = tenant.PersistenceFileTree
	}
	return tenant.StorageConfig{
		PreferredPersistence: kind,
		Dir:                  b.Path,
		VectorCollection:     collection,
		EmbeddingDim:         dim,
	}
}

func toEndpoints(whs []config.WebhookConfig) []webhooks.Endpoint {
	out := make([]webhooks.Endpoint, 0, len(whs))
	for _, wh := range whs {
		out = append(out, webhooks.Endpoint{
			Name:    wh.Name,
			URL:     wh.URL,
			Auth:    webhooks.AuthMode(wh.Auth),
			Secret:  wh.Secret.Value(),
			Events:  wh.Events,
			Scopes:  wh.Scopes,
			Enabled: wh.Enabled,
			Format:  webhooks.Format(wh.Format),
			Retry: webhooks.RetryConfig{
				MaxRetries:  wh.Retry.MaxRetries,
				BaseDelayMs: wh.Retry.BaseDelayMs,
				TimeoutSecs: wh.Retry.TimeoutSecs,
			},
		})
	}
	return out
}

// Config returns the loaded configuration.
func (s *Services) Config() *config.Config { return s.cfg }

// Access returns the static RBAC role/permission checker.
func (s *Services) Access() *rbac.AccessControl { return s.access }

// Prompts returns the prompt/context template store.
func (s *Services) Prompts() prompts.Store { return s.prompts }

// Scrubber returns the shared secrets scrubber.
func (s *Services) Scrubber() secrets.Scrubber { return s.scrubber }

// Dispatcher returns the webhook dispatcher, the capture.EventSink wired
// into every domain's Capture service.
func (s *Services) Dispatcher() *webhooks.Dispatcher { return s.dispatch }

// UserPromptHandler builds a fresh hooks.UserPromptHandler wired to
// domain's recall service (spec.md §4.12).
func (s *Services) UserPromptHandler(ctx context.Context, domain model.Domain) (*hooks.UserPromptHandler, error) {
	d, err := s.For(ctx, domain)
	if err != nil {
		return nil, err
	}
	return hooks.NewUserPromptHandler(hooks.DefaultConfig(), d.Recall), nil
}

// PreCompactHandler builds a fresh hooks.PreCompactHandler wired to
// domain's capture service, optionally with the LLM fallback classifier
// when cfg.Features.AutoCaptureUseLLM and an LlmProvider are both present.
func (s *Services) PreCompactHandler(ctx context.Context, domain model.Domain) (*hooks.PreCompactHandler, error) {
	d, err := s.For(ctx, domain)
	if err != nil {
		return nil, err
	}
	hcfg := hooks.DefaultConfig()
	hcfg.UseLLMAnalysis = s.cfg.Features.AutoCaptureUseLLM
	var opts []hooks.PreCompactOption
	if classifier, ok := s.llm.(hooks.CaptureClassifier); ok && hcfg.UseLLMAnalysis {
		opts = append(opts, hooks.WithCaptureClassifier(classifier))
	}
	return hooks.NewPreCompactHandler(hcfg, d.Capture, domain, opts...), nil
}

// For resolves domain's Backends and the services layered over them,
// opening and caching them on first use. Safe for concurrent use; callers
// share the same *Domain (and thus the same in-process dedup LRU) for a
// given domain key across the process lifetime, matching spec.md §9's "the
// recent-capture LRU and backend caches are process-wide" note.
func (s *Services) For(_ context.Context, domain model.Domain) (*Domain, error) {
	key := domain.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.byDomain[key]; ok {
		return d, nil
	}

	backends, err := s.factory.Open(domain)
	if err != nil {
		return nil, err
	}

	dd := dedup.New(toDedupConfig(s.cfg.Dedup), backends.Persistence, s.embedder, backends.Vector)

	captureSvc := capture.New(
		capture.Config{BlockOnSecret: true},
		backends.Persistence, backends.Index, backends.Vector, s.embedder, dd,
		capture.WithLogger(s.logger),
		capture.WithEventSink(s.dispatch),
		capture.WithScrubber(s.scrubber),
		capture.WithExpirationTrigger(gc.NewExpirationGC(backends.Index, toExpirationConfig(s.cfg.Expiration), s.logger)),
	)

	recallSvc := recall.New(backends.Index, backends.Vector, s.embedder, recall.WithLogger(s.logger))

	consolidationSvc := consolidation.New(
		backends.Index, backends.Vector, s.embedder, captureSvc, s.llm,
		toConsolidationConfig(s.cfg.Consolidation), s.logger,
	)

	retentionGC := gc.NewRetentionGC(backends.Index, toRetentionConfig(s.cfg.Retention), s.logger)
	expirationGC := gc.NewExpirationGC(backends.Index, toExpirationConfig(s.cfg.Expiration), s.logger)

	d := &Domain{
		Backends:      backends,
		Dedup:         dd,
		Capture:       captureSvc,
		Recall:        recallSvc,
		Consolidation: consolidationSvc,
		Retention:     retentionGC,
		Expiration:    expirationGC,
	}
	s.byDomain[key] = d
	return d, nil
}

func toDedupConfig(c config.DedupConfig) dedup.Config {
	thresholds := dedup.DefaultThresholds()
	thresholds.Default = c.DefaultThreshold
	for ns, th := range c.Thresholds {
		thresholds.ByNamespace[model.Namespace(ns)] = th
	}
	return dedup.Config{
		Enabled:           c.Enabled,
		Thresholds:        thresholds,
		TimeWindow:        time.Duration(c.TimeWindowSecs) * time.Second,
		CacheCapacity:     c.CacheCapacity,
		MinSemanticLength: c.MinSemanticLength,
	}
}

func toRetentionConfig(c config.RetentionConfig) gc.RetentionConfig {
	overrides := make(map[model.Namespace]int, len(c.Overrides))
	for ns, days := range c.Overrides {
		if parsed, err := model.ParseNamespace(ns); err == nil {
			overrides[parsed] = days
		}
	}
	return gc.RetentionConfig{
		DefaultDays: c.DefaultDays,
		MinimumDays: c.MinimumDays,
		BatchLimit:  c.BatchLimit,
		Overrides:   overrides,
	}
}

func toExpirationConfig(c config.ExpirationConfig) gc.ExpirationConfig {
	return gc.ExpirationConfig{BatchLimit: c.BatchLimit, CleanupProbability: c.CleanupProbability}
}

func toConsolidationConfig(c config.ConsolidationConfig) consolidation.Config {
	return consolidation.Config{
		SimilarityThreshold:      c.SimilarityThreshold,
		MinMemoriesToConsolidate: c.MinMemoriesToConsolidate,
		GroupScanLimit:           c.GroupScanLimit,
	}
}

// Close closes every backend opened across every resolved domain.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, d := range s.byDomain {
		if err := d.Backends.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
