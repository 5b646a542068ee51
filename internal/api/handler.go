package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eugenenazirov/envfriend/internal/diag"
	"github.com/eugenenazirov/envfriend/internal/dom"
	"github.com/eugenenazirov/envfriend/internal/environment"
	"github.com/eugenenazirov/envfriend/internal/page"
	"github.com/eugenenazirov/envfriend/internal/urltemplate"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const maxBodyBytes = 4 << 20

// Handler exposes a page context over HTTP. Overrides are read from and written
// to the cookies of each request.
type Handler struct {
	page *page.Page

	// pageMutations allows requests to change state shared by every visitor:
	// the global environment, the cache and inline seeding of it.
	pageMutations bool
	clock         func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithPageMutations enables the endpoints that change page-wide state.
func WithPageMutations(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.pageMutations = enabled
	}
}

// NewHandler constructs a Handler serving p.
func NewHandler(p *page.Page, opts ...HandlerOption) *Handler {
	h := &Handler{
		page: p,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *page.Session {
	return h.page.Session(environment.NewCookieStore(w, r))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	target, err := h.session(w, r).CurrentEnvironment(project)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEnvironmentResponse(project, target))
}

func (h *Handler) handlePutOverride(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		writeError(w, http.StatusBadRequest, "Invalid override", "value must not be empty", "use DELETE to clear an override")
		return
	}

	project := r.PathValue("project")
	s := h.session(w, r)
	if err := s.OverrideCurrentEnvironment(project, req.Value); err != nil {
		writeResolveError(w, err)
		return
	}

	target, err := s.CurrentEnvironment(project)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	resp := newEnvironmentResponse(project, target)
	resp.Message = "Override applied"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	s := h.session(w, r)
	if err := s.OverrideCurrentEnvironment(project, ""); err != nil {
		writeResolveError(w, err)
		return
	}

	target, err := s.CurrentEnvironment(project)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	resp := newEnvironmentResponse(project, target)
	resp.Message = "Override cleared"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetGlobal(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, globalResponse{Value: h.page.GlobalEnvironment().Value()})
}

func (h *Handler) handlePutGlobal(w http.ResponseWriter, r *http.Request) {
	if !h.allowPageMutation(w, "global environment updates") {
		return
	}
	var req valueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.page.SetGlobalEnvironment(strings.TrimSpace(req.Value))
	writeJSON(w, http.StatusOK, globalResponse{Value: h.page.GlobalEnvironment().Value()})
}

func (h *Handler) handleResolveURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Template == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "template is required")
		return
	}
	if req.Environments != nil && !h.allowPageMutation(w, "inline environments") {
		return
	}

	project := r.PathValue("project")
	s := h.session(w, r)
	target, err := s.CurrentEnvironment(project)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	resolved, err := s.EnvironmentURL(r.Context(), req.Template, project, page.URLOptions{
		Environments: req.Environments,
		Host:         req.Host,
	})
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, urlResponse{
		URL:         resolved,
		Environment: target.Value(),
		AbsoluteURL: target.IsAbsoluteURL(),
	})
}

func (h *Handler) handleFilename(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "url query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, filenameResponse{Filename: urltemplate.FilenameFromURL(raw)})
}

func (h *Handler) handleInject(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Elements) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid request", "elements must contain at least one descriptor")
		return
	}
	if req.Environments != nil && !h.allowPageMutation(w, "inline environments") {
		return
	}

	doc, err := dom.Parse(strings.NewReader(req.HTML))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid document", err.Error())
		return
	}

	err = h.session(w, r).AppendEl(r.Context(), doc, req.Elements, page.URLOptions{
		Project:      r.PathValue("project"),
		Environments: req.Environments,
		Host:         req.Host,
	})
	if err != nil {
		writeResolveError(w, err)
		return
	}

	out, err := dom.RenderString(doc)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, injectResponse{HTML: out})
}

func (h *Handler) handleGetCache(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, cacheResponse{Projects: h.page.Cache().Snapshot()})
}

func (h *Handler) handleDeleteCache(w http.ResponseWriter, r *http.Request) {
	_ = r
	if !h.allowPageMutation(w, "cache resets") {
		return
	}
	h.page.Reset()
	writeJSON(w, http.StatusOK, cacheResponse{
		Projects: map[string]environment.Map{},
		Message:  "Page context reset",
	})
}

func (h *Handler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, diagnosticsResponse{Entries: h.page.Diagnostics().Entries()})
}

// allowPageMutation writes 403 and returns false unless page mutations are enabled.
func (h *Handler) allowPageMutation(w http.ResponseWriter, what string) bool {
	if h.pageMutations {
		return true
	}
	writeError(w, http.StatusForbidden, "Forbidden", what+" are disabled", "set enable_page_mutations in the server configuration")
	return false
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func newEnvironmentResponse(project string, target environment.Target) environmentResponse {
	return environmentResponse{
		Project:     project,
		Environment: target.Value(),
		AbsoluteURL: target.IsAbsoluteURL(),
	}
}

type valueRequest struct {
	Value string `json:"value"`
}

type urlRequest struct {
	Template     string            `json:"template"`
	Environments *environment.File `json:"environments,omitempty"`
	Host         string            `json:"host,omitempty"`
}

type injectRequest struct {
	HTML         string            `json:"html"`
	Elements     []dom.Element     `json:"elements"`
	Environments *environment.File `json:"environments,omitempty"`
	Host         string            `json:"host,omitempty"`
}

type environmentResponse struct {
	Project     string `json:"project"`
	Environment string `json:"environment"`
	AbsoluteURL bool   `json:"absoluteUrl"`
	Message     string `json:"message,omitempty"`
}

type globalResponse struct {
	Value string `json:"value"`
}

type urlResponse struct {
	URL         string `json:"url"`
	Environment string `json:"environment"`
	AbsoluteURL bool   `json:"absoluteUrl"`
}

type filenameResponse struct {
	Filename string `json:"filename"`
}

type injectResponse struct {
	HTML string `json:"html"`
}

type cacheResponse struct {
	Projects map[string]environment.Map `json:"projects"`
	Message  string                     `json:"message,omitempty"`
}

type diagnosticsResponse struct {
	Entries []diag.Entry `json:"entries"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return false
	}
	return true
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, environment.ErrMissingProject):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, dom.ErrTargetNotFound):
		writeError(w, http.StatusUnprocessableEntity, "Cannot append element", err.Error(), "make sure the target selector matches an element of the document")
	case errors.Is(err, dom.ErrInvalidSelector), errors.Is(err, dom.ErrMissingTag):
		writeError(w, http.StatusUnprocessableEntity, "Invalid element", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
