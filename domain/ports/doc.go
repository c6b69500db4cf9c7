// Package ports defines interfaces for infrastructure operations.
// Host function logic depends on these abstractions, and OS or test
// adapters implement them.
package ports
