package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, code, name, description, unit, department, created_at, updated_at`

// Create persiste un nuevo producto. (department, code) es único.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.Code, p.Name, p.Description, p.Unit, string(p.Department), p.CreatedAt, p.UpdatedAt,
	)
	return classify("insert product", err)
}

// GetByID obtiene un producto por ID; (nil, nil) si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get product", err)
	}
	return p, nil
}

// Update actualiza los datos del producto.
func (r *ProductRepo) Update(ctx context.Context, p *entity.Product) error {
	query := `
		UPDATE products SET code = $2, name = $3, description = $4, unit = $5, department = $6, updated_at = $7
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		p.ID, p.Code, p.Name, p.Description, p.Unit, string(p.Department), p.UpdatedAt,
	)
	if err != nil {
		return classify("update product", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List devuelve todos los productos (la caché carga la colección completa).
func (r *ProductRepo) List(ctx context.Context) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, classify("list products", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, classify("scan product", err)
		}
		list = append(list, p)
	}
	return list, classify("list products", rows.Err())
}

// Delete elimina el producto. Los movimientos no tienen FK: conservan su copia.
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return classify("delete product", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var (
		p    entity.Product
		dept string
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Unit, &dept, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Department = entity.Department(dept)
	return &p, nil
}
