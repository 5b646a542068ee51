// Package storage provides the per-project environment configuration cache.
package storage
