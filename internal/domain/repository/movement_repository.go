package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// MovementFilter filtros del reporte de movimientos. Campos vacíos no filtran.
type MovementFilter struct {
	Type           entity.MovementType
	OriginBranchID string
	Department     entity.Department
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// MovementRepository define el puerto de persistencia para movimientos.
// Query ordena por created_at DESC, id DESC y devuelve también el total sin paginar.
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.Movement) error
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	GetByRequestID(ctx context.Context, requestID string) (*entity.Movement, error)
	Delete(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]*entity.Movement, error)
	Query(ctx context.Context, filter MovementFilter) ([]*entity.Movement, int, error)
}
