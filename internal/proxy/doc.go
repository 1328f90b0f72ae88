// Package proxy runs the TCP dispatch loop. It binds the listen address
// once, accepts connections one at a time and hands each one to a handler
// on its own goroutine so a slow relay never delays the next accept.
//
// A failed accept is retried after a short backoff; a long run of
// consecutive failures stops the loop with ErrTooManyAcceptFailures.
package proxy
