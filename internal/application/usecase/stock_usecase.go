package usecase

import (
	"context"

	"github.com/jhoicas/stockflow/internal/application/access"
	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
)

const missing = "-"

// StockUseCase lecturas del stock por sucursal desde la caché.
type StockUseCase struct {
	cache Cache
}

// NewStockUseCase construye el caso de uso.
func NewStockUseCase(c Cache) *StockUseCase {
	return &StockUseCase{cache: c}
}

// Snapshot devuelve todas las filas de stock visibles para el actor, unidas con
// producto y sucursal. Filas de productos ya borrados sólo las ve el admin.
func (uc *StockUseCase) Snapshot(ctx context.Context, actor *entity.Actor, branchID string) ([]dto.BranchStockResponse, error) {
	if err := access.CheckPermission(actor, access.AnyRole...); err != nil {
		return nil, err
	}
	view, err := uc.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rows := view.BranchStocks()
	out := make([]dto.BranchStockResponse, 0, len(rows))
	for _, st := range rows {
		if branchID != "" && st.BranchID != branchID {
			continue
		}
		p, hasProduct := view.Product(st.ProductID)
		if !actor.IsAdmin() && (!hasProduct || !access.Visible(actor, p.Department)) {
			continue
		}
		r := dto.BranchStockResponse{
			ProductID:   st.ProductID,
			ProductCode: missing,
			ProductName: missing,
			Department:  missing,
			BranchID:    st.BranchID,
			BranchName:  missing,
			Quantity:    st.Quantity,
			UpdatedAt:   st.UpdatedAt,
		}
		if hasProduct {
			r.ProductCode, r.ProductName, r.Department = p.Code, p.Name, string(p.Department)
		}
		if b, ok := view.Branch(st.BranchID); ok {
			r.BranchName = b.Name
		}
		out = append(out, r)
	}
	return out, nil
}

// StockOf cantidad actual de un producto en una sucursal (0 si no hay fila).
func (uc *StockUseCase) StockOf(ctx context.Context, actor *entity.Actor, productID, branchID string) (int64, error) {
	if err := access.CheckPermission(actor, access.AnyRole...); err != nil {
		return 0, err
	}
	if productID == "" {
		return 0, domain.NewValidationError("product_id", "es obligatorio")
	}
	if branchID == "" {
		return 0, domain.NewValidationError("branch_id", "es obligatorio")
	}
	view, err := uc.cache.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	p, ok := view.Product(productID)
	if !ok {
		return 0, domain.ErrNotFound
	}
	if err := access.CheckDepartment(actor, p.Department); err != nil {
		return 0, err
	}
	// sin fila en una colección cargada: cantidad 0
	st, _ := view.Stock(productID, branchID)
	return st.Quantity, nil
}
