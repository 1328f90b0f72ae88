package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

type closeWriter interface {
	CloseWrite() error
}

// splice copies client->upstream and upstream->client concurrently. A
// direction that reaches EOF half-closes its destination so the peer sees
// EOF too. The first error cancels the group, which closes both
// connections and unblocks the other direction.
func splice(ctx context.Context, client, upstream net.Conn, idle time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	go func() {
		<-gctx.Done()
		client.Close()
		upstream.Close()
	}()

	var timer *idleTimer
	if idle > 0 {
		timer = newIdleTimer(idle, client, upstream)
	}

	g.Go(func() error {
		return pipe(upstream, client, timer, "client->backend")
	})
	g.Go(func() error {
		return pipe(client, upstream, timer, "backend->client")
	})

	return g.Wait()
}

func pipe(dst, src net.Conn, timer *idleTimer, direction string) error {
	var reader io.Reader = src
	if timer != nil {
		reader = timer.reader(src)
	}

	if _, err := io.Copy(dst, reader); err != nil {
		return fmt.Errorf("copy %s: %w", direction, err)
	}

	if cw, ok := dst.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			return fmt.Errorf("close write %s: %w", direction, err)
		}
	}

	return nil
}
