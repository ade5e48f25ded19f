// Package api exposes the HTTP interface for the cache layer control plane:
// tenant management, sitemap preview/import and page inventory listing.
package api
