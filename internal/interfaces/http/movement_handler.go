package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/application/inventory"
	"github.com/jhoicas/stockflow/internal/application/report"
)

// MovementHandler registra, lista y borra movimientos (protegido).
type MovementHandler struct {
	ledger  *inventory.Ledger
	reports *report.Engine
}

// NewMovementHandler construye el handler.
func NewMovementHandler(ledger *inventory.Ledger, reports *report.Engine) *MovementHandler {
	return &MovementHandler{ledger: ledger, reports: reports}
}

// Record godoc
// @Summary      Registrar movimiento de inventario
// @Description  inbound suma en origen; outbound resta en origen y, con destination_branch_id,
// @Description  suma en destino (traslado). request_id hace el registro idempotente.
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "Movimiento"
// @Success      201   {object}  dto.Envelope{data=dto.MovementResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      403   {object}  dto.Envelope
// @Failure      404   {object}  dto.Envelope
// @Failure      409   {object}  dto.Envelope
// @Failure      503   {object}  dto.Envelope
// @Router       /api/movements [post]
func (h *MovementHandler) Record(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	mov, err := h.ledger.RecordMovementFromRequest(c.Context(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK(inventory.ToMovementResponse(mov)))
}

// Recent godoc
// @Summary      Movimientos recientes
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        type   query  string  false  "inbound | outbound"
// @Param        limit  query  int     false  "Máximo de filas (0 = todas las cacheadas)"
// @Success      200    {object}  dto.Envelope{data=[]dto.MovementReportRow}
// @Failure      400    {object}  dto.Envelope
// @Router       /api/movements [get]
func (h *MovementHandler) Recent(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	rows, err := h.reports.RecentMovements(c.Context(), GetActor(c), c.Query("type"), limit)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(rows))
}

// Delete godoc
// @Summary      Borrar movimiento
// @Description  Según la política configurada conserva el stock o revierte el efecto.
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.Envelope
// @Failure      404  {object}  dto.Envelope
// @Failure      409  {object}  dto.Envelope
// @Router       /api/movements/{id} [delete]
func (h *MovementHandler) Delete(c *fiber.Ctx) error {
	if err := h.ledger.DeleteMovement(c.Context(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OK(fiber.Map{"policy": string(h.ledger.Policy())}))
}
