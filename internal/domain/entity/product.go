package entity

import "time"

// Product representa un producto del catálogo. No pertenece a ninguna sucursal;
// el stock se maneja por sucursal en BranchStock.
type Product struct {
	ID          string
	Code        string // código corto de exhibición (no único entre departamentos)
	Name        string
	Description string
	Unit        string // unidad de medida (UN, CX, KG...)
	Department  Department
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
