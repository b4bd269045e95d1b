package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/jhoicas/stockflow/internal/domain"
)

// Policy reintentos acotados para lecturas idempotentes.
// Nunca usar con escrituras: un reintento tras una escritura confirmada pero no
// reconocida duplicaría el efecto sobre el stock.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy 3 intentos con backoff exponencial corto.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}
}

// Do ejecuta op y la repite sólo mientras devuelva domain.ErrTransientStore,
// hasta Attempts intentos en total. Cualquier otro error corta en el acto.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.Attempts <= 1 {
		return op(ctx)
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	var last error
	err := backoff.Retry(func() error {
		last = op(ctx)
		if last == nil {
			return nil
		}
		if ctx.Err() != nil || !errors.Is(last, domain.ErrTransientStore) {
			return backoff.Permanent(last)
		}
		return last
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx))
	if err == nil {
		return nil
	}
	if last != nil {
		return last
	}
	return err
}
