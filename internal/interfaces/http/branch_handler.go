package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/application/usecase"
)

// BranchHandler maneja las peticiones HTTP para sucursales (protegido).
type BranchHandler struct {
	uc *usecase.BranchUseCase
}

// NewBranchHandler construye el handler.
func NewBranchHandler(uc *usecase.BranchUseCase) *BranchHandler {
	return &BranchHandler{uc: uc}
}

// List godoc
// @Summary      Listar sucursales
// @Tags         branches
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.Envelope{data=[]dto.BranchResponse}
// @Router       /api/branches [get]
func (h *BranchHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.List(c.Context(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(out))
}

// Create godoc
// @Summary      Crear sucursal
// @Tags         branches
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateBranchRequest  true  "name y code"
// @Success      201   {object}  dto.Envelope{data=dto.BranchResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      409   {object}  dto.Envelope
// @Router       /api/branches [post]
func (h *BranchHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateBranchRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Create(c.Context(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK(out))
}

// Delete godoc
// @Summary      Borrar sucursal
// @Tags         branches
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la sucursal"
// @Success      200  {object}  dto.Envelope
// @Failure      404  {object}  dto.Envelope
// @Router       /api/branches/{id} [delete]
func (h *BranchHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OK(nil))
}
