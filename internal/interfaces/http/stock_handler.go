package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/application/usecase"
)

// StockHandler lecturas de stock por sucursal (protegido).
type StockHandler struct {
	uc *usecase.StockUseCase
}

// NewStockHandler construye el handler.
func NewStockHandler(uc *usecase.StockUseCase) *StockHandler {
	return &StockHandler{uc: uc}
}

// Snapshot godoc
// @Summary      Stock por sucursal
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        branch_id  query  string  false  "Filtrar por sucursal"
// @Success      200  {object}  dto.Envelope{data=[]dto.BranchStockResponse}
// @Router       /api/stock [get]
func (h *StockHandler) Snapshot(c *fiber.Ctx) error {
	out, err := h.uc.Snapshot(c.Context(), GetActor(c), c.Query("branch_id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(out))
}

// Quantity godoc
// @Summary      Cantidad de un producto en una sucursal
// @Description  Sin fila de stock devuelve 0.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id  path  string  true  "ID del producto"
// @Param        branch_id   path  string  true  "ID de la sucursal"
// @Success      200  {object}  dto.Envelope
// @Failure      403  {object}  dto.Envelope
// @Failure      404  {object}  dto.Envelope
// @Router       /api/stock/{product_id}/{branch_id} [get]
func (h *StockHandler) Quantity(c *fiber.Ctx) error {
	productID, branchID := c.Params("product_id"), c.Params("branch_id")
	qty, err := h.uc.StockOf(c.Context(), GetActor(c), productID, branchID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(fiber.Map{"product_id": productID, "branch_id": branchID, "quantity": qty}))
}
