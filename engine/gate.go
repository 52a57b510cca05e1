package engine

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gate bounds outstanding model calls process-wide. It combines a weighted
// semaphore (in-flight calls) with a token bucket (calls per second).
// A nil *Gate admits everything.
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// GateOptions configures a Gate.
type GateOptions struct {
	// MaxConcurrent caps in-flight model calls; <= 0 means unbounded.
	MaxConcurrent int64
	// RequestsPerSecond caps the call rate; <= 0 means unlimited.
	RequestsPerSecond float64
	// Burst is the token bucket size. Defaults to 1 when a rate is set.
	Burst int
}

// NewGate creates a Gate.
func NewGate(optFns ...func(o *GateOptions)) *Gate {
	var opts GateOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	g := &Gate{limiter: rate.NewLimiter(rate.Inf, 0)}
	if opts.MaxConcurrent > 0 {
		g.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return g
}

// Acquire blocks until a model call may start or ctx is done. Every
// successful Acquire must be paired with Release.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		if g.sem != nil {
			g.sem.Release(1)
		}
		return err
	}
	return nil
}

// Release frees the slot taken by Acquire.
func (g *Gate) Release() {
	if g == nil || g.sem == nil {
		return
	}
	g.sem.Release(1)
}
