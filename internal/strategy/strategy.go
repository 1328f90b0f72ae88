package strategy

import (
	"github.com/angeloszaimis/proxee/internal/backend"
)

// Method identifies a selection policy.
type Method int

const (
	RoundRobin Method = iota
	Random
	IPHash
)

// ParseMethod maps a configuration value to a Method. Unrecognized values,
// including the empty string, map to RoundRobin with known set to false.
func ParseMethod(name string) (m Method, known bool) {
	switch name {
	case "round_robin":
		return RoundRobin, true
	case "random":
		return Random, true
	case "ip_hash":
		return IPHash, true
	default:
		return RoundRobin, false
	}
}

func (m Method) String() string {
	switch m {
	case RoundRobin:
		return "round_robin"
	case Random:
		return "random"
	case IPHash:
		return "ip_hash"
	default:
		return "unknown"
	}
}

// Select picks a server from reg according to m. The cursor is only
// advanced by RoundRobin, which requires it to be non-nil, and clientIP is
// only read by IPHash. It returns false when reg is empty.
func Select(m Method, reg *backend.Registry, cursor *Cursor, clientIP string) (backend.Server, bool) {
	if reg == nil || reg.Len() == 0 {
		return backend.Server{}, false
	}

	var idx int
	switch m {
	case Random:
		idx = randomIndex(reg.Len())
	case IPHash:
		idx = ipHashIndex(clientIP, reg.Len())
	default:
		idx = roundRobinIndex(cursor, reg.Len())
	}

	return reg.At(idx), true
}
