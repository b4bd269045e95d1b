package dto

import "time"

// CreateProductRequest entrada para crear un producto.
type CreateProductRequest struct {
	Code        string `json:"code" validate:"required,min=1,max=50"`
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description"`
	Unit        string `json:"unit" validate:"required"`
	Department  string `json:"department" validate:"required"`
}

// UpdateProductRequest entrada para actualizar un producto (campos opcionales).
type UpdateProductRequest struct {
	Code        *string `json:"code" validate:"omitempty,min=1,max=50"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	Unit        *string `json:"unit"`
	Department  *string `json:"department"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Unit        string    `json:"unit"`
	Department  string    `json:"department"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
