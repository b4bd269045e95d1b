package repository

import (
	"context"

	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
// GetByID devuelve (nil, nil) si no existe; Update y Delete devuelven domain.ErrNotFound.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	Update(ctx context.Context, product *entity.Product) error
	List(ctx context.Context) ([]*entity.Product, error)
	Delete(ctx context.Context, id string) error
}
