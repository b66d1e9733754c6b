// Package autosave debounces edit-buffer changes into silent saves. A single
// writer goroutine performs the saves, so at most one is in flight and they
// complete in the order they were scheduled.
package autosave

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"qservice/api/internal/report"
)

// SaveFunc persists one snapshot. It is only ever called from the writer
// goroutine.
type SaveFunc func(ctx context.Context, r report.Report) error

var ErrClosed = errors.New("autosave controller closed")

type Option func(*Controller)

// WithErrorHandler receives save failures. The default logs them.
func WithErrorHandler(fn func(report.Report, error)) Option {
	return func(c *Controller) { c.onError = fn }
}

func WithSaveTimeout(d time.Duration) Option {
	return func(c *Controller) { c.saveTimeout = d }
}

type job struct {
	snapshot    report.Report
	fingerprint []byte
	ack         chan error
}

type Controller struct {
	delay       time.Duration
	save        SaveFunc
	onError     func(report.Report, error)
	saveTimeout time.Duration

	mu        sync.Mutex
	cond      *sync.Cond
	timer     *time.Timer
	timerGen  uint64
	current   report.Report
	lastSaved []byte
	jobs      []job
	closed    bool
	stopping  bool
	done      chan struct{}
}

// New starts a controller whose last-saved snapshot is seed, so an untouched
// buffer never triggers a save.
func New(delay time.Duration, seed report.Report, save SaveFunc, opts ...Option) *Controller {
	c := &Controller{
		delay:       delay,
		save:        save,
		saveTimeout: 30 * time.Second,
		current:     seed.Clone(),
		lastSaved:   seed.Fingerprint(),
		done:        make(chan struct{}),
	}
	c.onError = func(r report.Report, err error) {
		log.Printf("autosave: save %s failed: %v", r.ID, err)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cond = sync.NewCond(&c.mu)
	go c.run()
	return c
}

// Changed records the new buffer and restarts the quiet-period timer.
func (c *Controller) Changed(r report.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.current = r.Clone()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
}

// MarkSaved tells the controller that r was persisted by someone else, for
// example an explicit submit.
func (c *Controller) MarkSaved(r report.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSaved = r.Fingerprint()
}

// fire runs when timer gen elapses. A tick whose timer was replaced or
// stopped while it waited for the lock is dropped.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.timerGen || c.timer == nil {
		return
	}
	c.timer = nil
	c.enqueueLocked(nil)
}

// enqueueLocked schedules a save when the buffer differs from the last saved
// snapshot. It reports whether a save was scheduled.
func (c *Controller) enqueueLocked(ack chan error) bool {
	fp := c.current.Fingerprint()
	if bytes.Equal(fp, c.lastSaved) {
		return false
	}
	c.lastSaved = fp
	c.jobs = append(c.jobs, job{snapshot: c.current.Clone(), fingerprint: fp, ack: ack})
	c.cond.Signal()
	return true
}

// Flush cancels the pending timer and saves now if the buffer is dirty. It
// waits for that save to finish.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
	ack := make(chan error, 1)
	scheduled := c.enqueueLocked(ack)
	c.mu.Unlock()
	if !scheduled {
		return nil
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close performs the final check-and-flush through the writer queue and
// waits until every queued save has finished.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
	ack := make(chan error, 1)
	scheduled := c.enqueueLocked(ack)
	c.stopping = true
	c.cond.Signal()
	c.mu.Unlock()

	var flushErr error
	if scheduled {
		select {
		case flushErr = <-ack:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return flushErr
}

// Dirty reports whether the buffer differs from the last saved snapshot.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !bytes.Equal(c.current.Fingerprint(), c.lastSaved)
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		c.mu.Lock()
		for len(c.jobs) == 0 && !c.stopping {
			c.cond.Wait()
		}
		if len(c.jobs) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.jobs[0]
		c.jobs = c.jobs[1:]
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
		err := c.save(ctx, next.snapshot)
		cancel()

		if err != nil {
			c.mu.Lock()
			// let the next tick retry unless a newer snapshot is already queued
			if bytes.Equal(c.lastSaved, next.fingerprint) {
				c.lastSaved = nil
			}
			c.mu.Unlock()
			c.onError(next.snapshot, err)
		}
		if next.ack != nil {
			next.ack <- err
		}
	}
}
