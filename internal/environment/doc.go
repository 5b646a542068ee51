// Package environment models deployment environments and resolves which one is
// active for a project. The active environment comes from a per-project override
// (usually a cookie), then a page-wide fallback, then "production".
package environment
