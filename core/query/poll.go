package query

import (
	"context"
	"sync"
	"time"
)

// Poller refetches one query at a fixed interval until stopped.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Poll fetches key immediately and then every interval, handing each result to onData.
// It stops when ctx is cancelled or Stop is called.
func Poll[T any](
	ctx context.Context,
	cl *Client,
	key Key,
	interval time.Duration,
	fn func(context.Context) (T, error),
	onData func(T, error),
) *Poller {
	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tick := func(opts ...Option) {
			data, err := Fetch(ctx, cl, key, fn, opts...)
			if ctx.Err() != nil {
				return // late result after stop
			}
			onData(data, err)
		}

		tick()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(Refetch())
			}
		}
	}()
	return p
}

// Stop cancels the poller and waits for its goroutine to exit.
func (p *Poller) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed once the poller has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
