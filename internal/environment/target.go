package environment

import "strings"

// Kind tells how a Target is applied to a URL template.
type Kind int

const (
	// KindEnvironmentID targets an entry of the project's environment map.
	KindEnvironmentID Kind = iota
	// KindAbsoluteURL replaces the template host entirely.
	KindAbsoluteURL
)

func (k Kind) String() string {
	if k == KindAbsoluteURL {
		return "absolute_url"
	}
	return "environment_id"
}

// Target is a resolved environment selection. The kind is decided once, when the
// raw value enters the system.
type Target struct {
	kind  Kind
	value string
}

// ParseTarget classifies raw. Values starting with http: or https: (any case) are
// absolute URLs, everything else is an environment id.
func ParseTarget(raw string) Target {
	if hasURLScheme(raw) {
		return AbsoluteURL(raw)
	}
	return EnvironmentID(raw)
}

// EnvironmentID returns a Target naming an environment.
func EnvironmentID(id string) Target {
	return Target{kind: KindEnvironmentID, value: id}
}

// AbsoluteURL returns a Target that replaces the asset host.
func AbsoluteURL(u string) Target {
	return Target{kind: KindAbsoluteURL, value: u}
}

// Kind reports how t is interpreted.
func (t Target) Kind() Kind { return t.kind }

// Value returns the raw environment id or URL.
func (t Target) Value() string { return t.value }

// String returns Value.
func (t Target) String() string { return t.value }

// IsZero reports whether t carries no value.
func (t Target) IsZero() bool { return t.value == "" }

// IsAbsoluteURL reports whether t replaces the template host.
func (t Target) IsAbsoluteURL() bool { return t.kind == KindAbsoluteURL }

func hasURLScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http:") || strings.HasPrefix(lower, "https:")
}
