package entity

import "time"

// Branch representa una sucursal (filial) donde se almacena inventario.
type Branch struct {
	ID        string
	Name      string
	Code      string
	CreatedAt time.Time
}
