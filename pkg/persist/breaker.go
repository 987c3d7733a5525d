package persist

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

// Breaker wraps a Store with a circuit breaker. Once the backend keeps
// failing, calls fail fast with gobreaker.ErrOpenState until the breaker
// lets a trial call through. A missing key is not a failure.
type Breaker struct {
	store Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps store. Zero settings trip after more than five
// consecutive failures and stay open for 60 seconds.
func NewBreaker(store Store, settings gobreaker.Settings) *Breaker {
	return &Breaker{
		store: store,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Load implements Store.
func (b *Breaker) Load(ctx context.Context, key string) ([]byte, error) {
	missing := false
	v, err := b.cb.Execute(func() (interface{}, error) {
		data, err := b.store.Load(ctx, key)
		if errors.Is(err, ErrNotFound) {
			missing = true
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return nil, ErrNotFound
	}
	return v.([]byte), nil
}

// Save implements Store.
func (b *Breaker) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.store.Save(ctx, key, data)
	})
	return err
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
