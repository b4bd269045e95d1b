package memory

import (
	"context"
	"maps"

	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

// TxRunner ejecuta unidades de trabajo sobre el Store.
// En modo atómico serializa las unidades y restaura stock y movimientos si fn falla.
type TxRunner struct{ s *Store }

// Atomic indica si un fallo dentro de Run deja el Store sin cambios.
func (t *TxRunner) Atomic() bool { return t.s.atomic }

func (t *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	stockRepo repository.BranchStockRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	movRepo, stockRepo := t.s.Movements(), t.s.Stock()
	if !t.s.atomic {
		return fn(movRepo, stockRepo)
	}

	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	snap := t.s.snapshot()
	if err := fn(movRepo, stockRepo); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

type txSnapshot struct {
	stock     map[entity.StockKey]entity.BranchStock
	movements map[string]entity.Movement
	requests  map[string]string
}

func (s *Store) snapshot() txSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return txSnapshot{
		stock:     maps.Clone(s.stock),
		movements: maps.Clone(s.movements),
		requests:  maps.Clone(s.requests),
	}
}

func (s *Store) restore(snap txSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = snap.stock
	s.movements = snap.movements
	s.requests = snap.requests
}
