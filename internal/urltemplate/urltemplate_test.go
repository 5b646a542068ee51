package urltemplate

import "testing"

func TestFilenameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "file", url: "https://www.example.com/path/file1.txt", want: "file1.txt"},
		{name: "trailing slash", url: "https://www.example.com/path/", want: ""},
		{name: "no dot", url: "https://www.example.com/path/file", want: ""},
		{name: "template", url: "https://example.com/{env}/index.html", want: "index.html"},
		{name: "bare name", url: "app.js", want: "app.js"},
		{name: "empty", url: "", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FilenameFromURL(tc.url); got != tc.want {
				t.Fatalf("FilenameFromURL(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestSubstituteReplacesAllOccurrences(t *testing.T) {
	t.Parallel()

	got := Substitute("https://{env}.example.com/{env}/index.html?e={env}", "pd1")
	want := "https://pd1.example.com/pd1/index.html?e=pd1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := Substitute("https://example.com/static.css", "pd1"); got != "https://example.com/static.css" {
		t.Fatalf("expected template without placeholder to be unchanged, got %q", got)
	}
}

func TestRehost(t *testing.T) {
	t.Parallel()

	if got := Rehost("http://www.example.com", "https://example.com/{env}/index.html"); got != "http://www.example.com/index.html" {
		t.Fatalf("unexpected rehost result %q", got)
	}
	if got := Rehost("http://localhost:5000", "https://example.com/{env}/"); got != "http://localhost:5000/" {
		t.Fatalf("unexpected rehost result without filename %q", got)
	}
}

func TestHasPlaceholder(t *testing.T) {
	t.Parallel()

	if !HasPlaceholder("https://example.com/{env}/app.js") {
		t.Fatalf("expected placeholder to be detected")
	}
	if HasPlaceholder("https://example.com/env/app.js") {
		t.Fatalf("expected no placeholder")
	}
}
