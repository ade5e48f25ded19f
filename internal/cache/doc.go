// Package cache defines the core types shared across the content-cache
// control plane: tenant clients, the page inventory, sitemap discovery
// results, and the interfaces the engine components are wired through.
package cache
