package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/dto"
)

// Pinger verifica que el almacenamiento responda.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler indicador de estado del servicio y del almacenamiento.
type HealthHandler struct {
	service string
	store   Pinger
	timeout time.Duration
}

// NewHealthHandler construye el handler; store nil reporta sólo liveness.
func NewHealthHandler(service string, store Pinger) *HealthHandler {
	return &HealthHandler{service: service, store: store, timeout: 2 * time.Second}
}

// Check godoc
// @Summary      Estado del servicio
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.Envelope
// @Failure      503  {object}  dto.Envelope
// @Router       /health [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok", "service": h.service, "store": "ok"}
	if h.store == nil {
		status["store"] = "n/a"
		return c.JSON(dto.OK(status))
	}
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		status["status"], status["store"] = "degraded", "unavailable"
		env := dto.Fail("TRANSIENT", "almacenamiento no disponible")
		env.Data = status
		return c.Status(fiber.StatusServiceUnavailable).JSON(env)
	}
	return c.JSON(dto.OK(status))
}
