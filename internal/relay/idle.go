package relay

import (
	"io"
	"net"
	"time"
)

// idleTimer pushes the read deadline of both connections forward whenever
// either side reads, so a one-way stream keeps the whole relay alive.
type idleTimer struct {
	timeout time.Duration
	conns   []net.Conn
}

func newIdleTimer(timeout time.Duration, conns ...net.Conn) *idleTimer {
	t := &idleTimer{timeout: timeout, conns: conns}
	t.touch()
	return t
}

// touch sets deadlines from time.Now rather than the relay clock: the kernel
// compares them against wall time.
func (t *idleTimer) touch() {
	deadline := time.Now().Add(t.timeout)
	for _, c := range t.conns {
		_ = c.SetReadDeadline(deadline)
	}
}

func (t *idleTimer) reader(src net.Conn) io.Reader {
	return &idleReader{src: src, timer: t}
}

type idleReader struct {
	src   net.Conn
	timer *idleTimer
}

func (r *idleReader) Read(p []byte) (int, error) {
	r.timer.touch()
	return r.src.Read(p)
}
