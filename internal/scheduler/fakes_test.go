package scheduler

import (
	"context"
	"sync"
	"time"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

// fakeClock advances virtual time on every Sleep and records the requested durations.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]time.Duration, len(c.sleeps))
	copy(cp, c.sleeps)
	return cp
}

func (c *fakeClock) count(d time.Duration) int {
	n := 0
	for _, s := range c.recorded() {
		if s == d {
			n++
		}
	}
	return n
}

// fakeGateway returns scripted errors per post id, then succeeds.
type fakeGateway struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   []string
	onCall  func(id string)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{scripts: make(map[string][]error)}
}

func (g *fakeGateway) script(id string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[id] = append(g.scripts[id], errs...)
}

func (g *fakeGateway) IdentifyCurrentUser(context.Context) (*entities.Account, error) {
	return &entities.Account{ID: "1", Handle: "tester"}, nil
}

func (g *fakeGateway) ListRecentPosts(context.Context, string, int) ([]entities.Post, error) {
	return nil, nil
}

func (g *fakeGateway) DeleteByID(_ context.Context, id string) error {
	g.mu.Lock()
	g.calls = append(g.calls, id)
	var err error
	if queue := g.scripts[id]; len(queue) > 0 {
		err = queue[0]
		g.scripts[id] = queue[1:]
	}
	hook := g.onCall
	g.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return err
}

func (g *fakeGateway) attempted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make([]string, len(g.calls))
	copy(cp, g.calls)
	return cp
}

var _ ports.Clock = (*fakeClock)(nil)
var _ ports.PostGateway = (*fakeGateway)(nil)
