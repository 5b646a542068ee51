package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/envfriend/internal/config"
	"github.com/eugenenazirov/envfriend/internal/dom"
	"github.com/eugenenazirov/envfriend/internal/environment"
	"github.com/eugenenazirov/envfriend/internal/page"
)

// SiteHandler serves a directory of static files. HTML pages get the configured
// elements appended, resolved against the override cookies of each request.
type SiteHandler struct {
	dir    string
	site   config.SiteConfig
	page   *page.Page
	files  http.Handler
	logger *zap.Logger
}

// NewSiteHandler serves site.Dir through p.
func NewSiteHandler(site config.SiteConfig, p *page.Page, logger *zap.Logger) *SiteHandler {
	return &SiteHandler{
		dir:    site.Dir,
		site:   site,
		page:   p,
		files:  http.FileServer(http.Dir(site.Dir)),
		logger: logger,
	}
}

func (s *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" is not supported")
		return
	}

	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.dir, filepath.FromSlash(name))
	if info, err := os.Stat(file); err == nil && info.IsDir() {
		file = filepath.Join(file, "index.html")
	}
	if !strings.EqualFold(filepath.Ext(file), ".html") {
		s.files.ServeHTTP(w, r)
		return
	}

	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		writeInternalError(w, err)
		return
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	sess := s.page.Session(environment.NewCookieStore(nil, r))
	err = sess.AppendEl(r.Context(), doc, s.site.Elements, page.URLOptions{
		Project: s.site.Project,
		Host:    s.site.Host,
	})
	if err != nil {
		s.logger.Error("inject site elements",
			zap.String("path", name),
			zap.String("project", s.site.Project),
			zap.Error(err),
		)
		writeResolveError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		return
	}
	if err := dom.Render(w, doc); err != nil {
		s.logger.Warn("render site page", zap.String("path", name), zap.Error(err))
	}
}
