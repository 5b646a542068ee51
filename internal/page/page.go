// Package page ties environment resolution, the configuration cache and the DOM
// injector to an explicit page context. A Page lives from page load until it is
// reset or discarded; a Session binds it to one caller's override store.
package page

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/eugenenazirov/envfriend/internal/diag"
	"github.com/eugenenazirov/envfriend/internal/dom"
	"github.com/eugenenazirov/envfriend/internal/envconfig"
	"github.com/eugenenazirov/envfriend/internal/environment"
	"github.com/eugenenazirov/envfriend/internal/fetcher"
	"github.com/eugenenazirov/envfriend/internal/storage"
	"github.com/eugenenazirov/envfriend/internal/urltemplate"
)

// Page owns the configuration cache, the diagnostic log and the page-wide
// fallback environment. It is safe for concurrent use.
type Page struct {
	cache    *storage.MemoryCache
	diag     *diag.Log
	loader   *envconfig.Loader
	injector *dom.Injector
	logger   *zap.Logger

	mu       sync.RWMutex
	fallback environment.Target
}

// Option configures a Page.
type Option func(*options)

type options struct {
	fetcher   fetcher.Fetcher
	diagLimit int
	globalEnv string
}

// WithFetcher sets the source of remote environment documents.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithDiagnosticsLimit caps the diagnostic log.
func WithDiagnosticsLimit(limit int) Option {
	return func(o *options) {
		o.diagLimit = limit
	}
}

// WithGlobalEnvironment sets the initial page-wide fallback.
func WithGlobalEnvironment(value string) Option {
	return func(o *options) {
		o.globalEnv = value
	}
}

// New creates a Page with an empty cache.
func New(logger *zap.Logger, opts ...Option) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = fetcher.New()
	}

	log := diag.New(logger, diag.WithLimit(o.diagLimit))
	cache := storage.NewMemoryCache()

	return &Page{
		cache:    cache,
		diag:     log,
		loader:   envconfig.NewLoader(cache, o.fetcher, log, logger),
		injector: dom.NewInjector(log),
		logger:   logger,
		fallback: parseFallback(o.globalEnv),
	}
}

// Cache exposes the configuration cache for inspection.
func (p *Page) Cache() *storage.MemoryCache {
	return p.cache
}

// Diagnostics exposes the diagnostic log.
func (p *Page) Diagnostics() *diag.Log {
	return p.diag
}

// GlobalEnvironment returns the page-wide fallback, or the zero Target.
func (p *Page) GlobalEnvironment() environment.Target {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fallback
}

// SetGlobalEnvironment sets the page-wide fallback. An empty value unsets it.
func (p *Page) SetGlobalEnvironment(value string) {
	t := parseFallback(value)

	p.mu.Lock()
	p.fallback = t
	p.mu.Unlock()
}

// Reset ends the page lifetime: cached configuration and diagnostics are dropped.
// The global fallback is kept.
func (p *Page) Reset() {
	p.cache.Reset()
	p.diag.Reset()
	p.logger.Info("page context reset")
}

// Session binds the page to an override store, typically the cookies of one request.
func (p *Page) Session(overrides environment.OverrideStore) *Session {
	if overrides == nil {
		overrides = environment.NewMemoryStore()
	}
	return &Session{page: p, overrides: overrides}
}

func parseFallback(value string) environment.Target {
	if value == "" {
		return environment.Target{}
	}
	return environment.ParseTarget(value)
}

// URLOptions tunes EnvironmentURL. Environments, when set, is used instead of a
// remote fetch the first time a project is loaded.
type URLOptions struct {
	Project      string
	Environments *environment.File
	Host         string
}

// Session performs resolutions for one caller.
type Session struct {
	page      *Page
	overrides environment.OverrideStore
}

// CurrentEnvironment resolves the active environment of project.
func (s *Session) CurrentEnvironment(project string) (environment.Target, error) {
	return environment.Resolve(project, s.overrides, s.page.GlobalEnvironment())
}

// CurrentEnvironmentString is CurrentEnvironment as a plain string.
func (s *Session) CurrentEnvironmentString(project string) (string, error) {
	t, err := s.CurrentEnvironment(project)
	if err != nil {
		return "", err
	}
	return t.Value(), nil
}

// OverrideCurrentEnvironment sets the override of project, or clears it when
// value is empty.
func (s *Session) OverrideCurrentEnvironment(project, value string) error {
	if err := environment.Override(project, value, s.overrides); err != nil {
		return err
	}
	s.page.logger.Info("environment override applied",
		zap.String("project", project),
		zap.String("override", value),
	)
	return nil
}

// Config returns the environment map of project, loading it on first use.
func (s *Session) Config(ctx context.Context, project string, inline *environment.File, host string) (envconfig.Result, error) {
	if project == "" {
		return envconfig.Result{}, environment.ErrMissingProject
	}
	return s.page.loader.Load(ctx, project, inline, host), nil
}

// EnvironmentURL substitutes the active environment of project into template.
// An absolute URL override replaces the template host and keeps only its file
// name. Configuration failures fall back to production and never surface here.
func (s *Session) EnvironmentURL(ctx context.Context, template, project string, opts URLOptions) (string, error) {
	if project == "" {
		project = opts.Project
	}

	target, err := s.CurrentEnvironment(project)
	if err != nil {
		return "", err
	}
	if target.IsAbsoluteURL() {
		return urltemplate.Rehost(target.Value(), template), nil
	}

	res := s.page.loader.Load(ctx, project, opts.Environments, opts.Host)
	return urltemplate.Substitute(template, res.Environments.PathFor(target.Value())), nil
}

// AppendEl appends elements to doc, resolving templated attributes for the
// project named in opts.
func (s *Session) AppendEl(ctx context.Context, doc *html.Node, elements []dom.Element, opts URLOptions) error {
	if opts.Project == "" {
		return fmt.Errorf("append elements: %w", environment.ErrMissingProject)
	}
	return s.page.injector.AppendEl(ctx, doc, elements, dom.Options{
		Project: opts.Project,
		Host:    opts.Host,
		Inline:  opts.Environments != nil,
		Resolve: func(ctx context.Context, template string) (string, error) {
			return s.EnvironmentURL(ctx, template, opts.Project, opts)
		},
	})
}
