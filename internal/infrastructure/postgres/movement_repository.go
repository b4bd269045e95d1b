package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación de MovementRepository sobre PostgreSQL (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador de movimientos. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// request_id y destination_branch_id son NULL cuando vienen vacíos.
const movementColumns = `id, COALESCE(request_id, ''), product_id, origin_branch_id,
	COALESCE(destination_branch_id, ''), quantity, type, notes, invoice_number,
	product_name, product_code, product_department, created_by, created_at`

// Create registra el movimiento. Un id o request_id repetido devuelve domain.ErrDuplicate.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO movements (
			id, request_id, product_id, origin_branch_id, destination_branch_id,
			quantity, type, notes, invoice_number,
			product_name, product_code, product_department, created_by, created_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.RequestID, m.ProductID, m.OriginBranchID, m.DestinationBranchID,
		m.Quantity, string(m.Type), m.Notes, m.InvoiceNumber,
		m.ProductName, m.ProductCode, string(m.ProductDepartment), m.CreatedBy, m.CreatedAt,
	)
	return classify("insert movement", err)
}

func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	return r.getOne(ctx, "get movement", `SELECT `+movementColumns+` FROM movements WHERE id = $1`, id)
}

// GetByRequestID busca el movimiento ya registrado con esa clave de idempotencia.
func (r *MovementRepo) GetByRequestID(ctx context.Context, requestID string) (*entity.Movement, error) {
	if requestID == "" {
		return nil, nil
	}
	return r.getOne(ctx, "get movement by request", `SELECT `+movementColumns+` FROM movements WHERE request_id = $1`, requestID)
}

func (r *MovementRepo) getOne(ctx context.Context, op, query, arg string) (*entity.Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return m, nil
}

func (r *MovementRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM movements WHERE id = $1`, id)
	if err != nil {
		return classify("delete movement", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent devuelve los últimos limit movimientos (más nuevos primero).
func (r *MovementRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, classify("list recent movements", err)
	}
	return collectMovements(rows, "list recent movements")
}

// Query aplica los filtros en SQL y devuelve la página pedida junto con el total.
// El departamento se filtra sobre la copia guardada en el movimiento.
func (r *MovementRepo) Query(ctx context.Context, f repository.MovementFilter) ([]*entity.Movement, int, error) {
	if f.Offset < 0 || f.Limit < 0 {
		return nil, 0, domain.NewValidationError("offset", "paginación negativa")
	}
	where, args := movementWhere(f)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM movements`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count movements", err)
	}
	if total == 0 || f.Offset >= total {
		return []*entity.Movement{}, total, nil
	}

	query := `SELECT ` + movementColumns + ` FROM movements` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("query movements", err)
	}
	list, err := collectMovements(rows, "query movements")
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func movementWhere(f repository.MovementFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.OriginBranchID != "" {
		add("origin_branch_id = $%d", f.OriginBranchID)
	}
	if f.Department != "" {
		add("product_department = $%d", string(f.Department))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectMovements(rows pgx.Rows, op string) ([]*entity.Movement, error) {
	defer rows.Close()
	list := []*entity.Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return list, nil
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var (
		m         entity.Movement
		typ, dept string
	)
	err := row.Scan(
		&m.ID, &m.RequestID, &m.ProductID, &m.OriginBranchID, &m.DestinationBranchID,
		&m.Quantity, &typ, &m.Notes, &m.InvoiceNumber,
		&m.ProductName, &m.ProductCode, &dept, &m.CreatedBy, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Type = entity.MovementType(typ)
	m.ProductDepartment = entity.Department(dept)
	return &m, nil
}
