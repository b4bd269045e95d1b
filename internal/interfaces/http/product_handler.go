package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/application/usecase"
)

// ProductHandler maneja las peticiones HTTP para Product (protegido).
type ProductHandler struct {
	uc *usecase.ProductUseCase
}

// NewProductHandler construye el handler.
func NewProductHandler(uc *usecase.ProductUseCase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// List godoc
// @Summary      Listar productos
// @Description  Los no admin sólo ven los de su departamento.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.Envelope{data=[]dto.ProductResponse}
// @Failure      401  {object}  dto.Envelope
// @Router       /api/products [get]
func (h *ProductHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.List(c.Context(), GetActor(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(out))
}

// Create godoc
// @Summary      Crear producto
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateProductRequest  true  "Datos del producto"
// @Success      201   {object}  dto.Envelope{data=dto.ProductResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      403   {object}  dto.Envelope
// @Failure      409   {object}  dto.Envelope
// @Router       /api/products [post]
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateProductRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Create(c.Context(), GetActor(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OK(out))
}

// Update godoc
// @Summary      Actualizar producto
// @Description  Cambiar el departamento requiere rol admin.
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del producto"
// @Param        body  body  dto.UpdateProductRequest  true  "Datos a actualizar"
// @Success      200   {object}  dto.Envelope{data=dto.ProductResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      403   {object}  dto.Envelope
// @Failure      404   {object}  dto.Envelope
// @Router       /api/products/{id} [put]
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateProductRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	out, err := h.uc.Update(c.Context(), GetActor(c), c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(out))
}

// Delete godoc
// @Summary      Borrar producto
// @Description  El stock y el historial del producto se conservan.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.Envelope
// @Failure      403  {object}  dto.Envelope
// @Failure      404  {object}  dto.Envelope
// @Router       /api/products/{id} [delete]
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), GetActor(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OK(nil))
}
