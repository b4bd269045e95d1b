package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// BranchStockRepository define el puerto para consultar/actualizar stock por sucursal+producto.
// Get y GetForUpdate devuelven (nil, nil) cuando no existe la fila: el motor necesita
// distinguir "sin registro" de "cantidad cero".
type BranchStockRepository interface {
	Get(ctx context.Context, productID, branchID string) (*entity.BranchStock, error)
	// GetForUpdate bloquea la fila hasta el fin de la transacción cuando el almacenamiento lo permite.
	GetForUpdate(ctx context.Context, productID, branchID string) (*entity.BranchStock, error)
	// Upsert fija la cantidad absoluta (carga inicial, conciliación). Los movimientos usan Adjust.
	Upsert(ctx context.Context, stock *entity.BranchStock) error
	// Adjust suma delta a la cantidad en una sola escritura y crea la fila si no existe.
	// Un resultado negativo se rechaza con ErrInsufficientStock.
	Adjust(ctx context.Context, productID, branchID string, delta int64, at time.Time) (*entity.BranchStock, error)
	// Delete borra la fila; no es error si no existe.
	Delete(ctx context.Context, productID, branchID string) error
	List(ctx context.Context) ([]*entity.BranchStock, error)
}
