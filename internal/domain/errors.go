package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrNoStockRecord     = errors.New("no hay registro de stock para esta sucursal")
	ErrTransientStore    = errors.New("almacenamiento no disponible temporalmente")
	ErrPartialEffect     = errors.New("efecto parcial: stock modificado sin movimiento registrado")
)

// ValidationError identifica el campo de entrada que no pasó la validación.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is permite errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError construye un error de validación para un campo.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientStockError indica que una salida supera la cantidad disponible.
// Available siempre es la cantidad actual (0 si no hay fila).
type InsufficientStockError struct {
	ProductID string
	BranchID  string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente: disponible %d, solicitado %d", e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StockEffect es un ajuste de cantidad ya aplicado sobre una fila de stock.
type StockEffect struct {
	ProductID string
	BranchID  string
	Delta     int64
}

// PartialEffectError se produce cuando el stock ya fue modificado pero el movimiento
// no quedó registrado y la compensación no pudo revertir todos los efectos.
// Requiere conciliación manual.
type PartialEffectError struct {
	Applied         []StockEffect
	Cause           error
	CompensationErr error
}

func (e *PartialEffectError) Error() string {
	msg := fmt.Sprintf("efecto parcial sobre %d fila(s) de stock: %v", len(e.Applied), e.Cause)
	if e.CompensationErr != nil {
		msg += fmt.Sprintf(" (compensación fallida: %v)", e.CompensationErr)
	}
	return msg
}

func (e *PartialEffectError) Is(target error) bool {
	return target == ErrPartialEffect
}

func (e *PartialEffectError) Unwrap() error {
	return e.Cause
}

// TransientError envuelve fallas de red, timeout o backend no disponible.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransientStore
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}
