// Package relay implements the per-connection unit of work: pick a backend,
// dial it, and copy bytes in both directions until both sides finish.
//
// A connection moves through Accepted, BackendSelected, Connected and
// Relaying before it is Completed with either Success or Failure. Every
// connection reports exactly one outcome to the Sink. The two copy
// directions run as an errgroup: a failing direction closes both sockets so
// its twin cannot hang, and any failure makes the whole relay a Failure.
package relay
