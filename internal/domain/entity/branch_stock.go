package entity

import "time"

// BranchStock es la cantidad actual de un producto en una sucursal.
// Clave compuesta (ProductID, BranchID); la ausencia de fila equivale a cantidad 0.
type BranchStock struct {
	ProductID string
	BranchID  string
	Quantity  int64
	UpdatedAt time.Time
}

// StockKey identifica una fila de BranchStock.
type StockKey struct {
	ProductID string
	BranchID  string
}

// Key devuelve la clave compuesta de la fila.
func (s BranchStock) Key() StockKey {
	return StockKey{ProductID: s.ProductID, BranchID: s.BranchID}
}

func (k StockKey) String() string {
	return k.ProductID + "/" + k.BranchID
}
