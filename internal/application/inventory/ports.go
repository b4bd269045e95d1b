package inventory

import (
	"context"

	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

// TxRunner ejecuta una unidad de trabajo pasando repositorios atados a ella.
// Atomic indica si un error dentro de fn deshace todo lo escrito (transacción real).
// Cuando no lo es, el motor compensa los efectos ya aplicados.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		stockRepo repository.BranchStockRepository,
	) error) error
	Atomic() bool
}

// Cache parte de la caché de entidades que usa el motor.
type Cache interface {
	Snapshot(ctx context.Context) (cache.View, error)
	Invalidate(kind cache.Kind)
	InvalidatePages()
}

var _ Cache = (*cache.EntityCache)(nil)
