package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stockflow/internal/application/inventory"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Atomic siempre true: Commit o Rollback completo.
func (r *TxRunner) Atomic() bool { return true }

// Run inicia una transacción READ COMMITTED, ejecuta fn con repos atados a la tx y hace
// Commit o Rollback. Las filas leídas con GetForUpdate quedan bloqueadas hasta el final.
// Si la conexión se corta durante el Commit el error es transitorio y el resultado
// incierto: el cliente reintenta con el mismo request_id.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	stockRepo repository.BranchStockRepository,
) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(NewMovementRepository(tx), NewBranchStockRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}
