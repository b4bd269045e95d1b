package entity

import "time"

// MovementType tipo de movimiento de inventario.
type MovementType string

// Tipos de movimiento.
const (
	MovementInbound  MovementType = "inbound"  // entrada
	MovementOutbound MovementType = "outbound" // salida; con destino es traslado
)

// ParseMovementType valida el tipo recibido en la frontera.
func ParseMovementType(s string) (MovementType, bool) {
	switch MovementType(s) {
	case MovementInbound, MovementOutbound:
		return MovementType(s), true
	}
	return "", false
}

// Movement es un registro inmutable de entrada, salida o traslado.
// ProductName, ProductCode y ProductDepartment son una copia del producto al momento
// del movimiento para que los reportes históricos no cambien si el producto se edita.
type Movement struct {
	ID                  string
	RequestID           string // idempotencia opcional enviada por el cliente
	ProductID           string
	OriginBranchID      string
	DestinationBranchID string // vacío salvo en traslados
	Quantity            int64
	Type                MovementType
	Notes               string
	InvoiceNumber       string
	ProductName         string
	ProductCode         string
	ProductDepartment   Department
	CreatedBy           string
	CreatedAt           time.Time
}

// IsTransfer indica si la salida tiene sucursal destino.
func (m *Movement) IsTransfer() bool {
	return m.Type == MovementOutbound && m.DestinationBranchID != ""
}
