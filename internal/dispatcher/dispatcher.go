package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmehdipour/mail-relay/internal/model"
)

var (
	ErrNoHealthy   = errors.New("no healthy email providers")
	ErrNoAcquire   = errors.New("email provider not acquired")
	ErrNoProviders = errors.New("no email providers configured")
)

// Dispatcher spreads sends round-robin over the providers whose breaker is
// closed, retrying on another provider up to maxAttempts times.
type Dispatcher struct {
	providers   []Provider
	next        atomic.Uint64
	maxAttempts int
}

func NewDispatcher(providers []Provider, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 2
	}
	return &Dispatcher{providers: providers, maxAttempts: maxAttempts}
}

func (d *Dispatcher) pick() (Provider, error) {
	healthy := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}
	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}
	n := d.next.Add(1)
	return healthy[int((n-1)%uint64(len(healthy)))], nil
}

func (d *Dispatcher) attempt(ctx context.Context, email model.Email) error {
	p, err := d.pick()
	if err != nil {
		return err
	}
	if !p.Acquire() {
		return ErrNoAcquire
	}
	if err := p.Send(ctx, email); err != nil {
		return fmt.Errorf("%s: %w", p.Name(), err)
	}
	return nil
}

func (d *Dispatcher) Send(ctx context.Context, email model.Email) error {
	if len(d.providers) == 0 {
		return ErrNoProviders
	}
	var last error
	for i := 0; i < d.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last = d.attempt(ctx, email); last == nil {
			return nil
		}
	}
	return fmt.Errorf("send email: %w", last)
}
