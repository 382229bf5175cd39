package apiclient

import "sync"

// coordinator holds the refresh state of one Transport. It does no I/O; every
// method returns quickly so the lock is never held across a network call.
type coordinator struct {
	mu         sync.Mutex
	refreshing bool
	// generation counts successful refreshes.
	generation uint64
	queue      []*pending
}

// pending is a request parked until the in-flight refresh resolves.
type pending struct {
	// token receives the new access token once, or is closed without a value
	// when the refresh fails.
	token chan string
	// Exactly one of dispatched or abandoned is closed by the waiter after it
	// has received its token.
	dispatched chan struct{}
	abandoned  chan struct{}
}

func newPending() *pending {
	return &pending{
		token:      make(chan string, 1),
		dispatched: make(chan struct{}),
		abandoned:  make(chan struct{}),
	}
}

type decision int

const (
	// decideRefresh: the caller owns the refresh cycle.
	decideRefresh decision = iota
	// decideWait: a refresh is in flight; wait on the returned pending entry.
	decideWait
	// decideReplay: a refresh completed after the request was sent; replay
	// with the current token.
	decideReplay
)

func (c *coordinator) current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// claim decides what a request that got a 401 does next. sentGen is the
// generation observed before the request was sent.
func (c *coordinator) claim(sentGen uint64) (decision, *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshing {
		p := newPending()
		c.queue = append(c.queue, p)
		return decideWait, p
	}
	if sentGen != c.generation {
		return decideReplay, nil
	}
	c.refreshing = true
	return decideRefresh, nil
}

// settle ends the refresh cycle and detaches the queue.
func (c *coordinator) settle(ok bool) []*pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshing = false
	if ok {
		c.generation++
	}
	queue := c.queue
	c.queue = nil
	return queue
}

// publish hands token to each queued request in arrival order. The next
// request is released only after the previous one has dispatched its replay
// or given up, so replays leave in FIFO order.
func (c *coordinator) publish(queue []*pending, token string) {
	for _, p := range queue {
		p.token <- token
		select {
		case <-p.dispatched:
		case <-p.abandoned:
		}
	}
}

// abandon releases every queued request without a token.
func (c *coordinator) abandon(queue []*pending) {
	for _, p := range queue {
		close(p.token)
	}
}

func (c *coordinator) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *coordinator) inFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}
