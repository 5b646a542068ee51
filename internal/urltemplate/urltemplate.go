// Package urltemplate substitutes environment path fragments into URL templates.
package urltemplate

import "strings"

// Placeholder marks where the environment fragment goes in a template.
const Placeholder = "{env}"

// HasPlaceholder reports whether s contains the environment placeholder.
func HasPlaceholder(s string) bool {
	return strings.Contains(s, Placeholder)
}

// Substitute replaces every placeholder in template with fragment.
func Substitute(template, fragment string) string {
	return strings.ReplaceAll(template, Placeholder, fragment)
}

// FilenameFromURL returns the last path segment of u when it contains a dot,
// otherwise the empty string.
func FilenameFromURL(u string) string {
	name := u[strings.LastIndex(u, "/")+1:]
	if !strings.Contains(name, ".") {
		return ""
	}
	return name
}

// Rehost points template at base, keeping only its file name.
func Rehost(base, template string) string {
	return base + "/" + FilenameFromURL(template)
}
