package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var _ repository.BranchStockRepository = (*BranchStockRepo)(nil)

// BranchStockRepo implementación de BranchStockRepository sobre PostgreSQL (usable con pool o tx).
type BranchStockRepo struct {
	q Querier
}

// NewBranchStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewBranchStockRepository(q Querier) *BranchStockRepo {
	return &BranchStockRepo{q: q}
}

// Get obtiene el stock actual; (nil, nil) si no hay fila.
func (r *BranchStockRepo) Get(ctx context.Context, productID, branchID string) (*entity.BranchStock, error) {
	return r.get(ctx, "get stock", `
		SELECT product_id, branch_id, quantity, updated_at
		FROM branch_stock WHERE product_id = $1 AND branch_id = $2`, productID, branchID)
}

// GetForUpdate obtiene el stock y bloquea la fila hasta el fin de la tx (SELECT FOR UPDATE).
// Sin fila no hay nada que bloquear; por eso las escrituras van por Adjust, que suma
// sobre el valor vigente en vez de pisarlo.
func (r *BranchStockRepo) GetForUpdate(ctx context.Context, productID, branchID string) (*entity.BranchStock, error) {
	return r.get(ctx, "get stock for update", `
		SELECT product_id, branch_id, quantity, updated_at
		FROM branch_stock WHERE product_id = $1 AND branch_id = $2
		FOR UPDATE`, productID, branchID)
}

func (r *BranchStockRepo) get(ctx context.Context, op, query, productID, branchID string) (*entity.BranchStock, error) {
	var s entity.BranchStock
	err := r.q.QueryRow(ctx, query, productID, branchID).Scan(&s.ProductID, &s.BranchID, &s.Quantity, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return &s, nil
}

// Upsert inserta o actualiza la cantidad (por producto y sucursal).
// El CHECK quantity >= 0 de la tabla rechaza negativos.
func (r *BranchStockRepo) Upsert(ctx context.Context, s *entity.BranchStock) error {
	query := `
		INSERT INTO branch_stock (product_id, branch_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, branch_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, s.ProductID, s.BranchID, s.Quantity, s.UpdatedAt)
	return classify("upsert stock", err)
}

// Adjust suma delta sobre la cantidad vigente. Dos transacciones que crean la misma
// fila se serializan en la PK y la segunda suma sobre lo que dejó la primera.
// El CHECK quantity >= 0 rechaza un resultado negativo (ErrInsufficientStock).
func (r *BranchStockRepo) Adjust(ctx context.Context, productID, branchID string, delta int64, at time.Time) (*entity.BranchStock, error) {
	query := `
		INSERT INTO branch_stock (product_id, branch_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, branch_id)
		DO UPDATE SET quantity = branch_stock.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING product_id, branch_id, quantity, updated_at`
	var s entity.BranchStock
	err := r.q.QueryRow(ctx, query, productID, branchID, delta, at).Scan(&s.ProductID, &s.BranchID, &s.Quantity, &s.UpdatedAt)
	if err != nil {
		return nil, classify("adjust stock", err)
	}
	return &s, nil
}

func (r *BranchStockRepo) Delete(ctx context.Context, productID, branchID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM branch_stock WHERE product_id = $1 AND branch_id = $2`, productID, branchID)
	return classify("delete stock", err)
}

func (r *BranchStockRepo) List(ctx context.Context) ([]*entity.BranchStock, error) {
	rows, err := r.q.Query(ctx, `SELECT product_id, branch_id, quantity, updated_at FROM branch_stock`)
	if err != nil {
		return nil, classify("list stock", err)
	}
	defer rows.Close()
	var list []*entity.BranchStock
	for rows.Next() {
		var s entity.BranchStock
		if err := rows.Scan(&s.ProductID, &s.BranchID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, classify("scan stock", err)
		}
		list = append(list, &s)
	}
	return list, classify("list stock", rows.Err())
}
