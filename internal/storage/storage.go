package storage

import (
	"sync"

	"github.com/eugenenazirov/envfriend/internal/environment"
)

// ConfigCache holds the environment map of each project for the lifetime of a
// page context. Entries are never evicted individually.
type ConfigCache interface {
	Get(project string) (environment.Map, bool)
	Set(project string, envs environment.Map)
	Snapshot() map[string]environment.Map
	Reset()
}

// MemoryCache keeps project maps in-memory and guards access with a RWMutex.
type MemoryCache struct {
	mu       sync.RWMutex
	projects map[string]environment.Map
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		projects: make(map[string]environment.Map),
	}
}

// Get returns a copy of the cached map for project.
func (c *MemoryCache) Get(project string) (environment.Map, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	envs, ok := c.projects[project]
	if !ok {
		return nil, false
	}
	return envs.Clone(), true
}

// Set stores a copy of envs for project, replacing any previous entry.
func (c *MemoryCache) Set(project string, envs environment.Map) {
	stored := envs.Clone()

	c.mu.Lock()
	c.projects[project] = stored
	c.mu.Unlock()
}

// Snapshot returns a deep copy of every cached project.
func (c *MemoryCache) Snapshot() map[string]environment.Map {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]environment.Map, len(c.projects))
	for project, envs := range c.projects {
		out[project] = envs.Clone()
	}
	return out
}

// Reset drops every entry.
func (c *MemoryCache) Reset() {
	c.mu.Lock()
	c.projects = make(map[string]environment.Map)
	c.mu.Unlock()
}
