// Package httpserver runs the metrics HTTP endpoint: a validated
// http.Server with graceful shutdown and an IP allowlist middleware.
package httpserver
