package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/envfriend/internal/api"
	"github.com/eugenenazirov/envfriend/internal/config"
	"github.com/eugenenazirov/envfriend/internal/fetcher"
	"github.com/eugenenazirov/envfriend/internal/page"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	page    *page.Page
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	f := fetcher.New(
		fetcher.WithDefaultHost(cfg.ConfigHost),
		fetcher.WithTimeout(cfg.FetchTimeout),
	)
	p := page.New(logger,
		page.WithFetcher(f),
		page.WithDiagnosticsLimit(cfg.DiagnosticsLimit),
		page.WithGlobalEnvironment(cfg.GlobalEnvironment),
	)

	handler := api.NewHandler(p, api.WithPageMutations(cfg.EnablePageMutations))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithCORSOrigins(cfg.CORSOrigins),
	)

	var site http.Handler
	if cfg.Site.Enabled() {
		dir, err := resolveSiteDir(cfg.Site.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to locate site directory: %w", err)
		}
		siteCfg := cfg.Site
		siteCfg.Dir = dir
		site = api.NewSiteHandler(siteCfg, p, logger)
		logger.Info("serving site",
			zap.String("dir", dir),
			zap.String("project", siteCfg.Project),
			zap.Int("elements", len(siteCfg.Elements)),
		)
	}

	return &App{
		page:    p,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter, site)),
	}, nil
}

// BuildRootHandler routes API requests to apiHandler and everything else to
// site. Without a site only the API is served.
func BuildRootHandler(apiHandler, site http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)

	if site == nil {
		site = http.HandlerFunc(http.NotFound)
	}
	mux.Handle("/", site)

	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Page returns the page context served by the application.
func (a *App) Page() *page.Page {
	return a.page
}

// resolveSiteDir returns dir when it exists, otherwise looks it up relative to
// the project root.
func resolveSiteDir(dir string) (string, error) {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return "", fmt.Errorf("%s is not a directory", dir)
		}
		return filepath.Abs(dir)
	}
	if filepath.IsAbs(dir) {
		return "", fmt.Errorf("unable to locate %s", dir)
	}
	return resolveProjectPath(dir)
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
