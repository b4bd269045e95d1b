package http

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stockflow/internal/domain"
)

func TestMapError_Taxonomia(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validación", domain.NewValidationError("quantity", "debe ser positivo"), fiber.StatusBadRequest, "VALIDATION"},
		{"no autenticado", domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"prohibido", fmt.Errorf("producto: %w", domain.ErrForbidden), fiber.StatusForbidden, "FORBIDDEN"},
		{"no encontrado", domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
		{"duplicado", domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
		{"stock insuficiente", &domain.InsufficientStockError{Available: 2, Requested: 5}, fiber.StatusConflict, "INSUFFICIENT_STOCK"},
		{"sin registro", domain.ErrNoStockRecord, fiber.StatusConflict, "NO_STOCK_RECORD"},
		{"transitorio", &domain.TransientError{Op: "query", Cause: errors.New("timeout")}, fiber.StatusServiceUnavailable, "TRANSIENT"},
		{"efecto parcial", &domain.PartialEffectError{Cause: domain.ErrDuplicate}, fiber.StatusInternalServerError, "PARTIAL_EFFECT"},
		{"fiber", fiber.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
		{"desconocido", errors.New("pgx: conn busy"), fiber.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, env.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestMapError_NoFiltraDetalleInterno(t *testing.T) {
	_, env := mapError(errors.New("password authentication failed for user postgres"))
	assert.Equal(t, "operación fallida", env.Error)

	_, env = mapError(&domain.InsufficientStockError{Available: 3, Requested: 7})
	assert.Contains(t, env.Error, "disponible 3")

	_, env = mapError(domain.NewValidationError("notes", "máximo 500 caracteres"))
	assert.Equal(t, "notes", env.Field)
}
