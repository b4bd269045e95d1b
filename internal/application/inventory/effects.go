package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

// effects lleva la cuenta de los ajustes de stock aplicados dentro de una unidad de
// trabajo. Si el TxRunner no es atómico y un paso posterior falla, los revierte en
// orden inverso (saga).
type effects struct {
	ctx     context.Context
	l       *Ledger
	repo    repository.BranchStockRepository
	applied []appliedEffect
}

type appliedEffect struct {
	productID string
	branchID  string
	existed   bool // la fila existía antes de este movimiento
	delta     int64
}

func (l *Ledger) newEffects(ctx context.Context, repo repository.BranchStockRepository) *effects {
	return &effects{ctx: ctx, l: l, repo: repo}
}

// apply suma delta a la fila (la crea si no existe). El almacenamiento rechaza un
// resultado negativo; con el chequeo previo bajo lock no debería ocurrir.
func (fx *effects) apply(row *entity.BranchStock, productID, branchID string, delta int64, now time.Time) error {
	if _, err := fx.repo.Adjust(fx.ctx, productID, branchID, delta, now); err != nil {
		return err
	}
	fx.applied = append(fx.applied, appliedEffect{
		productID: productID,
		branchID:  branchID,
		existed:   row != nil,
		delta:     delta,
	})
	return nil
}

// fail decide qué devolver cuando un paso falla después de haber tocado stock.
// Con transacción real basta devolver cause. Sin ella se compensa; si la compensación
// falla el resultado es *PartialEffectError.
func (fx *effects) fail(cause error) error {
	if fx.l.tx.Atomic() || len(fx.applied) == 0 {
		return cause
	}
	// La compensación no debe abortar porque el llamador canceló.
	ctx := context.WithoutCancel(fx.ctx)
	for i := len(fx.applied) - 1; i >= 0; i-- {
		if err := fx.undo(ctx, fx.applied[i]); err != nil {
			return &domain.PartialEffectError{
				Applied:         fx.remaining(i),
				Cause:           cause,
				CompensationErr: err,
			}
		}
	}
	fx.l.log.Warn().Err(cause).Int("compensated", len(fx.applied)).Msg("efectos de stock compensados")
	fx.applied = nil
	return cause
}

// undo revierte un ajuste. Una fila creada por el movimiento se quita para que la
// próxima salida vea "sin registro" y no un cero.
func (fx *effects) undo(ctx context.Context, a appliedEffect) error {
	st, err := fx.repo.Adjust(ctx, a.productID, a.branchID, -a.delta, fx.l.now().UTC())
	if err != nil {
		return err
	}
	if a.existed || st.Quantity != 0 {
		return nil
	}
	if err := fx.repo.Delete(ctx, a.productID, a.branchID); err != nil {
		// la cantidad ya está restaurada; sólo queda una fila en cero
		fx.l.log.Warn().Err(err).
			Str("product_id", a.productID).
			Str("branch_id", a.branchID).
			Msg("no se pudo quitar la fila de stock creada por el movimiento")
	}
	return nil
}

// landed confirma, ante un error transitorio al insertar, si el movimiento quedó
// escrito igual (respuesta perdida). Si no se puede saber, se trata como no escrito.
func (fx *effects) landed(movRepo repository.MovementRepository, id string, err error) bool {
	if !errors.Is(err, domain.ErrTransientStore) || fx.l.tx.Atomic() {
		return false
	}
	m, getErr := movRepo.GetByID(context.WithoutCancel(fx.ctx), id)
	return getErr == nil && m != nil
}

func (fx *effects) remaining(upTo int) []domain.StockEffect {
	out := make([]domain.StockEffect, 0, upTo+1)
	for _, a := range fx.applied[:upTo+1] {
		out = append(out, domain.StockEffect{
			ProductID: a.productID,
			BranchID:  a.branchID,
			Delta:     a.delta,
		})
	}
	return out
}
