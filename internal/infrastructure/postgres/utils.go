package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stockflow/internal/domain"
)

// Querier es lo común entre *pgxpool.Pool y pgx.Tx: los repos funcionan con ambos.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Códigos SQLSTATE usados.
const (
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeSerializationFailed = "40001"
	codeDeadlockDetected    = "40P01"
	codeAdminShutdown       = "57P01"
	codeCannotConnectNow    = "57P03"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// classify traduce errores del driver a la taxonomía de dominio.
// Timeouts, cortes de red y fallas de conexión quedan como *domain.TransientError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return domain.ErrDuplicate
		case codeCheckViolation:
			// quantity >= 0 a nivel de tabla
			return fmt.Errorf("%s: %w", op, domain.ErrInsufficientStock)
		case codeSerializationFailed, codeDeadlockDetected, codeAdminShutdown, codeCannotConnectNow:
			return &domain.TransientError{Op: op, Cause: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	if pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return &domain.TransientError{Op: op, Cause: err}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &domain.TransientError{Op: op, Cause: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
