// Package strategy implements the backend selection policies:
//
//   - Round Robin: cycles through backends using a shared atomic cursor
//   - Random: uniform pick per connection
//   - IP Hash: stable xxhash of the client IP for session affinity
//
// The set of methods is closed and chosen at startup. Every policy reports
// false instead of selecting when the registry is empty.
package strategy
