// Package loadbalancer exposes the single Pick operation shared by all
// connection relays. It couples the configured selection method with the
// registry and the round-robin cursor.
package loadbalancer
