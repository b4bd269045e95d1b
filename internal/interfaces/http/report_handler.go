package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/application/report"
)

// ReportHandler reporte paginado de movimientos (protegido).
type ReportHandler struct {
	engine *report.Engine
}

// NewReportHandler construye el handler.
func NewReportHandler(engine *report.Engine) *ReportHandler {
	return &ReportHandler{engine: engine}
}

// Movements godoc
// @Summary      Reporte de movimientos
// @Description  Ordenado por fecha descendente. Para no admin el departamento es siempre el propio.
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        type        query  string  false  "inbound | outbound"
// @Param        branch_id   query  string  false  "Sucursal de origen"
// @Param        department  query  string  false  "Departamento (sólo admin puede elegir otro)"
// @Param        from        query  string  false  "YYYY-MM-DD inclusive"
// @Param        to          query  string  false  "YYYY-MM-DD inclusive"
// @Param        page        query  int     false  "Página (desde 1)"       default(1)
// @Param        page_size   query  int     false  "Tamaño de página"       default(50)
// @Param        no_cache    query  bool    false  "Ignorar la caché de páginas"
// @Success      200  {object}  dto.Envelope{data=dto.MovementReport}
// @Failure      400  {object}  dto.Envelope
// @Router       /api/reports/movements [get]
func (h *ReportHandler) Movements(c *fiber.Ctx) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		return err
	}
	out, err := h.engine.QueryMovements(c.Context(), GetActor(c), report.Filters{
		Type:         c.Query("type"),
		BranchID:     c.Query("branch_id"),
		Department:   c.Query("department"),
		From:         c.Query("from"),
		To:           c.Query("to"),
		Page:         page,
		PageSize:     pageSize,
		DisableCache: c.QueryBool("no_cache", false),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(out))
}
