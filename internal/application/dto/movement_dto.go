package dto

import "time"

// RegisterMovementRequest body para POST /api/movements.
// destination_branch_id sólo aplica a salidas y las convierte en traslado.
type RegisterMovementRequest struct {
	RequestID           string `json:"request_id,omitempty" validate:"omitempty,uuid"`
	ProductID           string `json:"product_id" validate:"required"`
	OriginBranchID      string `json:"origin_branch_id" validate:"required"`
	DestinationBranchID string `json:"destination_branch_id,omitempty"`
	Quantity            int64  `json:"quantity" validate:"gt=0"`
	Type                string `json:"type" validate:"required"`
	Notes               string `json:"notes,omitempty" validate:"max=500"`
	InvoiceNumber       string `json:"invoice_number,omitempty" validate:"max=60"`
}

// MovementResponse salida de un movimiento registrado.
type MovementResponse struct {
	ID                  string    `json:"id"`
	RequestID           string    `json:"request_id,omitempty"`
	ProductID           string    `json:"product_id"`
	ProductCode         string    `json:"product_code"`
	ProductName         string    `json:"product_name"`
	ProductDepartment   string    `json:"product_department"`
	OriginBranchID      string    `json:"origin_branch_id"`
	DestinationBranchID string    `json:"destination_branch_id,omitempty"`
	Quantity            int64     `json:"quantity"`
	Type                string    `json:"type"`
	Transfer            bool      `json:"transfer"`
	Notes               string    `json:"notes,omitempty"`
	InvoiceNumber       string    `json:"invoice_number,omitempty"`
	CreatedBy           string    `json:"created_by,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// MovementReportRow fila del reporte: movimiento unido con sucursales y producto.
// Los campos ausentes llevan un marcador explícito en lugar de quedar vacíos.
type MovementReportRow struct {
	ID                    string    `json:"id"`
	Date                  time.Time `json:"date"`
	InvoiceNumber         string    `json:"invoice_number"`
	OriginBranchName      string    `json:"origin_branch_name"`
	OriginBranchCode      string    `json:"origin_branch_code"`
	DestinationBranchName string    `json:"destination_branch_name"`
	DestinationBranchCode string    `json:"destination_branch_code"`
	ProductCode           string    `json:"product_code"`
	ProductName           string    `json:"product_name"`
	ProductDepartment     string    `json:"product_department"`
	Quantity              int64     `json:"quantity"`
	Type                  string    `json:"type"`
	Transfer              bool      `json:"transfer"`
	Notes                 string    `json:"notes"`
}

// MovementReport página del reporte con el total real de filas.
type MovementReport struct {
	Rows []MovementReportRow `json:"rows"`
	Page PageResponse        `json:"page"`
}
