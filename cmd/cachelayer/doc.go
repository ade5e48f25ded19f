// Package main runs the cache layer control plane service.
package main
