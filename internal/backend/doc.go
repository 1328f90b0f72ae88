// Package backend holds the backend registry: the immutable, ordered list of
// upstream servers loaded at startup and shared read-only by every relay.
package backend
