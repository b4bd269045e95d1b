package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var _ repository.BranchRepository = (*BranchRepo)(nil)

// BranchRepo implementación de BranchRepository sobre PostgreSQL.
type BranchRepo struct {
	q Querier
}

// NewBranchRepository construye el adaptador de sucursales. Pasar pool o tx (Querier).
func NewBranchRepository(q Querier) *BranchRepo {
	return &BranchRepo{q: q}
}

func (r *BranchRepo) Create(ctx context.Context, b *entity.Branch) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO branches (id, name, code, created_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.Name, b.Code, b.CreatedAt,
	)
	return classify("insert branch", err)
}

func (r *BranchRepo) GetByID(ctx context.Context, id string) (*entity.Branch, error) {
	var b entity.Branch
	err := r.q.QueryRow(ctx, `SELECT id, name, code, created_at FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Code, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get branch", err)
	}
	return &b, nil
}

func (r *BranchRepo) List(ctx context.Context) ([]*entity.Branch, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, code, created_at FROM branches ORDER BY created_at DESC`)
	if err != nil {
		return nil, classify("list branches", err)
	}
	defer rows.Close()
	var list []*entity.Branch
	for rows.Next() {
		var b entity.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Code, &b.CreatedAt); err != nil {
			return nil, classify("scan branch", err)
		}
		list = append(list, &b)
	}
	return list, classify("list branches", rows.Err())
}

// Delete borra la sucursal sin tocar branch_stock ni movements (sin FK).
func (r *BranchRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM branches WHERE id = $1`, id)
	if err != nil {
		return classify("delete branch", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
