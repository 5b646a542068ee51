// Package envconfig loads and caches the environment map of each project. A
// project is loaded at most once per cache lifetime, from an inline document or
// from the config host; failures degrade to an empty map.
package envconfig

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eugenenazirov/envfriend/internal/diag"
	"github.com/eugenenazirov/envfriend/internal/environment"
	"github.com/eugenenazirov/envfriend/internal/fetcher"
	"github.com/eugenenazirov/envfriend/internal/storage"
)

// Source tells where a Result came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceInline Source = "inline"
	SourceRemote Source = "remote"
	SourceFailed Source = "failed"
)

// Result is the outcome of a Load. Err is set when Source is SourceFailed; the
// Environments map is then empty but still usable.
type Result struct {
	Environments environment.Map
	Source       Source
	Err          error
}

// Loader resolves project environment maps through the cache.
type Loader struct {
	cache   storage.ConfigCache
	fetcher fetcher.Fetcher
	diag    *diag.Log
	logger  *zap.Logger
	group   singleflight.Group
}

// NewLoader wires a Loader. A nil log or logger is replaced by a no-op one.
func NewLoader(cache storage.ConfigCache, f fetcher.Fetcher, log *diag.Log, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if log == nil {
		log = diag.New(logger)
	}
	return &Loader{
		cache:   cache,
		fetcher: f,
		diag:    log,
		logger:  logger,
	}
}

// Load returns the environment map for project. A cached entry always wins, even
// when inline differs from the document used to populate it.
//
// The shared fetch ignores cancellation of ctx: its result is cached for every
// later caller, so it is bounded by the fetcher timeout only.
func (l *Loader) Load(ctx context.Context, project string, inline *environment.File, host string) Result {
	if envs, ok := l.cache.Get(project); ok {
		return Result{Environments: envs, Source: SourceCache}
	}

	fetchCtx := context.WithoutCancel(ctx)
	v, _, _ := l.group.Do(project, func() (any, error) {
		if envs, ok := l.cache.Get(project); ok {
			return Result{Environments: envs, Source: SourceCache}, nil
		}
		res := l.populate(fetchCtx, project, inline, host)
		l.cache.Set(project, res.Environments)
		return res, nil
	})
	return v.(Result)
}

func (l *Loader) populate(ctx context.Context, project string, inline *environment.File, host string) Result {
	if inline != nil {
		if err := inline.Validate(); err != nil {
			return l.fail(project, fmt.Errorf("inline environments: %w", err))
		}
		return Result{Environments: inline.Map(), Source: SourceInline}
	}

	f, err := l.fetcher.Fetch(ctx, host, project)
	if err != nil {
		return l.fail(project, err)
	}
	return Result{Environments: f.Map(), Source: SourceRemote}
}

func (l *Loader) fail(project string, err error) Result {
	l.logger.Warn("environment config unavailable, using defaults",
		zap.String("project", project),
		zap.Error(err),
	)
	l.diag.Record(diag.Entry{
		Kind:    diag.KindConfigLoadFailed,
		Project: project,
		Message: "environment config unavailable",
		Error:   err.Error(),
	})
	return Result{Environments: environment.Map{}, Source: SourceFailed, Err: err}
}
