package memory

import (
	"context"
	"time"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var _ repository.BranchStockRepository = (*BranchStockRepo)(nil)

// BranchStockRepo stock por sucursal en memoria.
type BranchStockRepo struct{ s *Store }

func (r *BranchStockRepo) Get(_ context.Context, productID, branchID string) (*entity.BranchStock, error) {
	if err := r.s.hit(OpStockGet); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.stock[entity.StockKey{ProductID: productID, BranchID: branchID}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// GetForUpdate en memoria no bloquea filas; la exclusión la da el motor o el TxRunner atómico.
func (r *BranchStockRepo) GetForUpdate(ctx context.Context, productID, branchID string) (*entity.BranchStock, error) {
	return r.Get(ctx, productID, branchID)
}

func (r *BranchStockRepo) Upsert(_ context.Context, st *entity.BranchStock) error {
	if err := r.s.hit(OpStockUpsert); err != nil {
		return err
	}
	if st.Quantity < 0 {
		return domain.ErrInsufficientStock
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stock[st.Key()] = *st
	return nil
}

func (r *BranchStockRepo) Adjust(_ context.Context, productID, branchID string, delta int64, at time.Time) (*entity.BranchStock, error) {
	if err := r.s.hit(OpStockAdjust); err != nil {
		return nil, err
	}
	key := entity.StockKey{ProductID: productID, BranchID: branchID}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.stock[key]
	if !ok {
		st = entity.BranchStock{ProductID: productID, BranchID: branchID}
	}
	if st.Quantity+delta < 0 {
		return nil, &domain.InsufficientStockError{ProductID: productID, BranchID: branchID, Available: st.Quantity, Requested: -delta}
	}
	st.Quantity += delta
	st.UpdatedAt = at
	r.s.stock[key] = st
	return &st, nil
}

func (r *BranchStockRepo) Delete(_ context.Context, productID, branchID string) error {
	if err := r.s.hit(OpStockDelete); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.stock, entity.StockKey{ProductID: productID, BranchID: branchID})
	return nil
}

func (r *BranchStockRepo) List(_ context.Context) ([]*entity.BranchStock, error) {
	if err := r.s.hit(OpStockList); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := make([]*entity.BranchStock, 0, len(r.s.stock))
	for _, st := range r.s.stock {
		st := st
		list = append(list, &st)
	}
	return list, nil
}
