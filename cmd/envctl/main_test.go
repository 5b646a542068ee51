package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const environmentsJSON = `{
  "name": "sales",
  "configuration": {
    "environments": [
      {"id": "production", "bucketPath": "pd1"},
      {"id": "stage27"}
    ]
  }
}`

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENVFRIEND_GLOBAL_ENVIRONMENT", "")
	t.Setenv("ENVFRIEND_CONFIG_HOST", "")

	var out bytes.Buffer
	err := run(context.Background(), append([]string{"--log-level", "error"}, args...), strings.NewReader(stdin), &out)
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCurrent(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "defaults to production", args: []string{"current", "sales"}, want: "production"},
		{name: "uses global environment", args: []string{"current", "sales", "--global", "stage23"}, want: "stage23"},
		{name: "override beats global", args: []string{"current", "sales", "--global", "stage23", "--override", "stage27"}, want: "stage27"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, "", tt.args...)
			if err != nil {
				t.Fatalf("run returned error: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestURLWithLocalEnvironments(t *testing.T) {
	envFile := writeFile(t, t.TempDir(), "environments.json", environmentsJSON)
	const template = "https://example.com/{env}/index.html"

	tests := []struct {
		name     string
		override string
		want     string
	}{
		{name: "production bucket path", want: "https://example.com/pd1/index.html"},
		{name: "override without bucket path", override: "stage27", want: "https://example.com/stage27/index.html"},
		{name: "unknown environment falls back", override: "stage99", want: "https://example.com/pd1/index.html"},
		{name: "absolute url override", override: "http://www.example.com", want: "http://www.example.com/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"url", "sales", template, "--environments", envFile}
			if tt.override != "" {
				args = append(args, "--override", tt.override)
			}
			out, err := runCLI(t, "", args...)
			if err != nil {
				t.Fatalf("run returned error: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestURLFetchesRemoteConfiguration(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/sales/environments.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(environmentsJSON))
	}))
	defer srv.Close()

	out, err := runCLI(t, "", "--config-host", srv.URL, "url", "sales", "https://cdn.example.com/{env}/app.js")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "https://cdn.example.com/pd1/app.js" {
		t.Fatalf("unexpected url %q", got)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", hits.Load())
	}
}

func TestURLFallsBackWhenFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, err := runCLI(t, "", "url", "sales", "https://cdn.example.com/{env}/app.js", "--host", srv.URL)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "https://cdn.example.com/production/app.js" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestURLRejectsInvalidEnvironmentsFile(t *testing.T) {
	envFile := writeFile(t, t.TempDir(), "environments.json", `{"configuration":`)

	if _, err := runCLI(t, "", "url", "sales", "https://example.com/{env}/", "--environments", envFile); err == nil {
		t.Fatalf("expected error for malformed environments file")
	}
}

func TestFilename(t *testing.T) {
	out, err := runCLI(t, "", "filename", "https://example.com/pd1/index.html")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if got := strings.TrimSpace(out); got != "index.html" {
		t.Fatalf("expected index.html, got %q", got)
	}
}

func TestInject(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "environments.json", environmentsJSON)
	elements := writeFile(t, dir, "elements.yaml", `
- el: script
  attrs:
    - [src, "https://cdn.example.com/{env}/app.js"]
- el: div
  target: body
  attrs:
    - [id, banner]
`)
	input := `<html><head><title>t</title></head><body></body></html>`

	t.Run("stdin to stdout", func(t *testing.T) {
		out, err := runCLI(t, input, "inject", "sales", "--elements", elements, "--environments", envFile, "--override", "stage27")
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
		if !strings.Contains(out, `<script src="https://cdn.example.com/stage27/app.js"></script></head>`) {
			t.Fatalf("script not appended to head: %s", out)
		}
		if !strings.Contains(out, `<div id="banner"></div></body>`) {
			t.Fatalf("div not appended to body: %s", out)
		}
	})

	t.Run("files", func(t *testing.T) {
		in := writeFile(t, dir, "index.html", input)
		outPath := filepath.Join(dir, "out.html")

		if _, err := runCLI(t, "", "inject", "sales", "--elements", elements, "--environments", envFile, "--in", in, "--out", outPath); err != nil {
			t.Fatalf("run returned error: %v", err)
		}
		data, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("read output: %v", err)
		}
		if !strings.Contains(string(data), `src="https://cdn.example.com/pd1/app.js"`) {
			t.Fatalf("unexpected output: %s", data)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		missing := writeFile(t, dir, "missing.yaml", "- el: div\n  target: '#nope'\n")
		if _, err := runCLI(t, input, "inject", "sales", "--elements", missing, "--environments", envFile); err == nil {
			t.Fatalf("expected error for missing target")
		}
	})
}

func TestUnknownCommand(t *testing.T) {
	if _, err := runCLI(t, "", "calculate"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
