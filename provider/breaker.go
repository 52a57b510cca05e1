package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/agentkit/logging"
	"github.com/hupe1980/agentkit/model"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerSettings configures a Breaker. Zero values take the defaults.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// Interval clears failure counts while closed.
	Interval time.Duration
	Logger   logging.Logger
}

// Breaker guards model calls of one provider. While open, calls fail fast
// without reaching the provider.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[model.Response]
}

// NewBreaker creates a Breaker named after the provider.
func NewBreaker(name string, optFns ...func(s *BreakerSettings)) *Breaker {
	var s BreakerSettings
	for _, fn := range optFns {
		fn(&s)
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = defaultBreakerMaxFailures
	}
	if s.Timeout == 0 {
		s.Timeout = defaultBreakerTimeout
	}
	if s.Interval == 0 {
		s.Interval = defaultBreakerInterval
	}
	logger := logging.OrNoOp(s.Logger)

	cb := gobreaker.NewCircuitBreaker[model.Response](gobreaker.Settings{
		Name:        "llm:" + name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider.breaker.state_change", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{name: name, cb: cb}
}

// State returns the current circuit state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Wrap returns m guarded by the breaker. The wrapped model emits only final
// responses.
func (b *Breaker) Wrap(m model.Model) model.Model {
	return &breakerModel{inner: m, breaker: b}
}

type breakerModel struct {
	inner   model.Model
	breaker *Breaker
}

func (m *breakerModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		resp, err := m.breaker.cb.Execute(func() (model.Response, error) {
			return model.GenerateOnce(ctx, m.inner, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				err = fmt.Errorf("provider %q circuit open: %w", m.breaker.name, err)
			}
			errCh <- err
			return
		}
		out <- resp
	}()
	return out, errCh
}

func (m *breakerModel) Info() model.Info { return m.inner.Info() }
