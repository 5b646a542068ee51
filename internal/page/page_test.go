package page

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/envfriend/internal/dom"
	"github.com/eugenenazirov/envfriend/internal/envconfig"
	"github.com/eugenenazirov/envfriend/internal/environment"
	"github.com/eugenenazirov/envfriend/internal/fetcher"
)

const mockConfig = `{
	"name": "sales",
	"configuration": {
		"environments": [
			{"id": "production", "bucketPath": "pd1"},
			{"id": "stage27"},
			{"id": "customFoobar", "name": "Foo", "bucketPath": "anyStageTesting", "usageNote": "Used for all"},
			{"id": "development", "bucketPath": "http://localhost:5000/"}
		]
	}
}`

const template = "https://example.com/{env}/index.html"

type configServer struct {
	*httptest.Server
	hits  atomic.Int32
	paths chan string
}

func newConfigServer(t *testing.T, body string, status int) *configServer {
	t.Helper()

	cs := &configServer{paths: make(chan string, 16)}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		cs.paths <- r.URL.Path
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newTestPage(t *testing.T, cs *configServer, opts ...Option) *Page {
	t.Helper()

	f := fetcher.New(fetcher.WithHTTPClient(cs.Client()), fetcher.WithDefaultHost(cs.URL))
	return New(zaptest.NewLogger(t), append([]Option{WithFetcher(f)}, opts...)...)
}

func TestCurrentEnvironmentStringOverride(t *testing.T) {
	p := New(zaptest.NewLogger(t))
	s := p.Session(environment.NewMemoryStore())

	got, err := s.CurrentEnvironmentString("sales")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "production" {
		t.Fatalf("expected production, got %q", got)
	}

	p.SetGlobalEnvironment("stage23")
	if got, _ := s.CurrentEnvironmentString("sales"); got != "stage23" {
		t.Fatalf("expected global fallback stage23, got %q", got)
	}

	if err := s.OverrideCurrentEnvironment("sales", "foo"); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	if p.GlobalEnvironment().Value() != "stage23" {
		t.Fatalf("override must not touch the global fallback")
	}
	if got, _ := s.CurrentEnvironmentString("sales"); got != "foo" {
		t.Fatalf("expected override foo, got %q", got)
	}

	if err := s.OverrideCurrentEnvironment("sales", ""); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got, _ := s.CurrentEnvironmentString("sales"); got != "stage23" {
		t.Fatalf("expected global fallback after clear, got %q", got)
	}

	if _, err := s.CurrentEnvironmentString(""); !errors.Is(err, environment.ErrMissingProject) {
		t.Fatalf("expected ErrMissingProject, got %v", err)
	}
}

func TestEnvironmentURLScenario(t *testing.T) {
	cs := newConfigServer(t, mockConfig, http.StatusOK)
	p := newTestPage(t, cs)
	overrides := environment.NewMemoryStore()
	s := p.Session(overrides)
	ctx := context.Background()

	got, err := s.EnvironmentURL(ctx, template, "squad1", URLOptions{})
	if err != nil {
		t.Fatalf("EnvironmentURL returned error: %v", err)
	}
	if got != "https://example.com/pd1/index.html" {
		t.Fatalf("unexpected url %q", got)
	}
	if path := <-cs.paths; path != "/squad1/environments.json" {
		t.Fatalf("unexpected config path %q", path)
	}

	// unknown environment falls back to production
	p.SetGlobalEnvironment("unknown")
	got, _ = s.EnvironmentURL(ctx, template, "squad1", URLOptions{})
	if got != "https://example.com/pd1/index.html" {
		t.Fatalf("unexpected url for unknown env %q", got)
	}
	if hits := cs.hits.Load(); hits != 1 {
		t.Fatalf("expected config to be fetched once, got %d", hits)
	}

	p.SetGlobalEnvironment("")
	if err := s.OverrideCurrentEnvironment("squad1", "stage27"); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	got, _ = s.EnvironmentURL(ctx, template, "squad1", URLOptions{})
	if got != "https://example.com/stage27/index.html" {
		t.Fatalf("expected id fallback for stage27, got %q", got)
	}

	if err := s.OverrideCurrentEnvironment("squad1", "http://www.example.com"); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	got, _ = s.EnvironmentURL(ctx, template, "squad1", URLOptions{})
	if got != "http://www.example.com/index.html" {
		t.Fatalf("expected rehosted url, got %q", got)
	}
}

func TestEnvironmentURLAbsoluteOverrideSkipsConfig(t *testing.T) {
	cs := newConfigServer(t, mockConfig, http.StatusOK)
	p := newTestPage(t, cs)
	s := p.Session(nil)

	if err := s.OverrideCurrentEnvironment("sales", "HTTPS://cdn.example.com"); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	got, err := s.EnvironmentURL(context.Background(), "https://example.com/{env}/", "sales", URLOptions{})
	if err != nil {
		t.Fatalf("EnvironmentURL returned error: %v", err)
	}
	if got != "HTTPS://cdn.example.com/" {
		t.Fatalf("unexpected url %q", got)
	}
	if cs.hits.Load() != 0 {
		t.Fatalf("expected no config fetch for absolute override")
	}
	if len(p.Cache().Snapshot()) != 0 {
		t.Fatalf("expected cache to stay empty")
	}
}

func TestEnvironmentURLFetchFailureFallsBackToProduction(t *testing.T) {
	cs := newConfigServer(t, "not json", http.StatusOK)
	p := newTestPage(t, cs)
	s := p.Session(nil)

	if err := s.OverrideCurrentEnvironment("sales", "stage27"); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	got, err := s.EnvironmentURL(context.Background(), "https://example.com/{env}/{env}.js", "sales", URLOptions{})
	if err != nil {
		t.Fatalf("fetch failures must not surface, got %v", err)
	}
	if got != "https://example.com/production/production.js" {
		t.Fatalf("unexpected url %q", got)
	}
	if p.Diagnostics().Len() != 1 {
		t.Fatalf("expected failure to be recorded, got %d entries", p.Diagnostics().Len())
	}
}

func TestEnvironmentURLCancelledCallerDoesNotPoisonCache(t *testing.T) {
	cs := newConfigServer(t, mockConfig, http.StatusOK)
	sess := newTestPage(t, cs).Session(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first, err := sess.EnvironmentURL(ctx, template, "sales", URLOptions{})
	if err != nil {
		t.Fatalf("EnvironmentURL returned error: %v", err)
	}
	second, err := sess.EnvironmentURL(context.Background(), template, "sales", URLOptions{})
	if err != nil {
		t.Fatalf("EnvironmentURL returned error: %v", err)
	}

	want := "https://example.com/pd1/index.html"
	if first != want || second != want {
		t.Fatalf("expected %s for both callers, got %s and %s", want, first, second)
	}
	if got := cs.hits.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestEnvironmentURLInlineConfigIsSticky(t *testing.T) {
	cs := newConfigServer(t, mockConfig, http.StatusOK)
	p := newTestPage(t, cs)
	s := p.Session(nil)
	ctx := context.Background()

	first := &environment.File{Configuration: environment.Configuration{
		Environments: []environment.Environment{{ID: "production", BucketPath: "inline1"}},
	}}
	second := &environment.File{Configuration: environment.Configuration{
		Environments: []environment.Environment{{ID: "production", BucketPath: "inline2"}},
	}}

	got, _ := s.EnvironmentURL(ctx, template, "", URLOptions{Project: "sales", Environments: first})
	if got != "https://example.com/inline1/index.html" {
		t.Fatalf("unexpected url %q", got)
	}
	got, _ = s.EnvironmentURL(ctx, template, "sales", URLOptions{Environments: second})
	if got != "https://example.com/inline1/index.html" {
		t.Fatalf("expected cached inline config to stick, got %q", got)
	}
	if cs.hits.Load() != 0 {
		t.Fatalf("expected inline config to skip the fetch")
	}
}

func TestConfigRequiresProject(t *testing.T) {
	p := New(zaptest.NewLogger(t))
	if _, err := p.Session(nil).Config(context.Background(), "", nil, ""); !errors.Is(err, environment.ErrMissingProject) {
		t.Fatalf("expected ErrMissingProject, got %v", err)
	}

	inline := &environment.File{}
	res, err := p.Session(nil).Config(context.Background(), "sales", inline, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != envconfig.SourceInline {
		t.Fatalf("expected inline source, got %s", res.Source)
	}
}

func TestCacheCanBeSeededAndReset(t *testing.T) {
	cs := newConfigServer(t, mockConfig, http.StatusOK)
	p := newTestPage(t, cs)
	p.Cache().Set("sales", environment.Map{"production": {ID: "production", BucketPath: "seeded"}})

	s := p.Session(nil)
	got, _ := s.EnvironmentURL(context.Background(), template, "sales", URLOptions{})
	if got != "https://example.com/seeded/index.html" {
		t.Fatalf("expected seeded cache entry to be used, got %q", got)
	}

	p.Reset()
	got, _ = s.EnvironmentURL(context.Background(), template, "sales", URLOptions{})
	if got != "https://example.com/pd1/index.html" {
		t.Fatalf("expected refetch after reset, got %q", got)
	}
	if cs.hits.Load() != 1 {
		t.Fatalf("expected one fetch after reset, got %d", cs.hits.Load())
	}
}

func TestAppendEl(t *testing.T) {
	cs := newConfigServer(t, mockConfig, http.StatusOK)
	p := newTestPage(t, cs, WithGlobalEnvironment("customFoobar"))
	s := p.Session(nil)

	doc, err := dom.Parse(strings.NewReader(`<html><head></head><body></body></html>`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	elements := []dom.Element{
		{Tag: "script", Target: "body", Attrs: []dom.Attr{{Name: "src", Value: "https://cdn.example.com/{env}/app.js"}}},
	}
	if err := s.AppendEl(context.Background(), doc, elements, URLOptions{Project: "sales"}); err != nil {
		t.Fatalf("AppendEl returned error: %v", err)
	}

	out, _ := dom.RenderString(doc)
	if !strings.Contains(out, `<script src="https://cdn.example.com/anyStageTesting/app.js"></script>`) {
		t.Fatalf("unexpected document %s", out)
	}

	if err := s.AppendEl(context.Background(), doc, elements, URLOptions{}); !errors.Is(err, environment.ErrMissingProject) {
		t.Fatalf("expected ErrMissingProject, got %v", err)
	}
}
