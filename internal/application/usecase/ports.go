package usecase

import (
	"context"

	"github.com/jhoicas/stockflow/internal/application/cache"
)

// Cache vista de la caché de entidades que usan los casos de uso del catálogo.
type Cache interface {
	Snapshot(ctx context.Context) (cache.View, error)
	Invalidate(kind cache.Kind)
	InvalidatePages()
}

var _ Cache = (*cache.EntityCache)(nil)
