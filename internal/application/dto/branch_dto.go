package dto

import "time"

// CreateBranchRequest entrada para crear una sucursal.
type CreateBranchRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
	Code string `json:"code" validate:"required,min=1,max=20"`
}

// BranchResponse salida de una sucursal.
type BranchResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// BranchStockResponse fila del snapshot de stock por sucursal.
type BranchStockResponse struct {
	ProductID   string    `json:"product_id"`
	ProductCode string    `json:"product_code"`
	ProductName string    `json:"product_name"`
	Department  string    `json:"department"`
	BranchID    string    `json:"branch_id"`
	BranchName  string    `json:"branch_name"`
	Quantity    int64     `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}
