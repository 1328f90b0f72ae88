package strategy

import (
	"github.com/cespare/xxhash/v2"
)

// HashIP returns the affinity hash of a client IP string. It is unkeyed, so
// the mapping survives process restarts.
func HashIP(clientIP string) uint64 {
	return xxhash.Sum64String(clientIP)
}

func ipHashIndex(clientIP string, n int) int {
	return int(HashIP(clientIP) % uint64(n))
}
