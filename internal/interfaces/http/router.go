package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/access"
	"github.com/jhoicas/stockflow/internal/application/inventory"
	"github.com/jhoicas/stockflow/internal/application/report"
	"github.com/jhoicas/stockflow/internal/application/usecase"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProductUC *usecase.ProductUseCase
	BranchUC  *usecase.BranchUseCase
	StockUC   *usecase.StockUseCase
	Ledger    *inventory.Ledger
	Reports   *report.Engine
	Store     Pinger
	Service   string
	JWTSecret string
}

// Router registra las rutas de la API.
// RequireRole filtra por rol en la frontera; los casos de uso vuelven a verificar
// rol y departamento con access.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", NewHealthHandler(deps.Service, deps.Store).Check)

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	editors := RequireRole(access.CatalogEdit...)

	products := api.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Get("/", productHandler.List)
	products.Post("/", editors, productHandler.Create)
	products.Put("/:id", editors, productHandler.Update)
	products.Delete("/:id", editors, productHandler.Delete)

	branches := api.Group("/branches")
	branchHandler := NewBranchHandler(deps.BranchUC)
	branches.Get("/", branchHandler.List)
	branches.Post("/", editors, branchHandler.Create)
	branches.Delete("/:id", editors, branchHandler.Delete)

	movements := api.Group("/movements")
	movementHandler := NewMovementHandler(deps.Ledger, deps.Reports)
	movements.Get("/", movementHandler.Recent)
	movements.Post("/", movementHandler.Record)
	movements.Delete("/:id", editors, movementHandler.Delete)

	stock := api.Group("/stock")
	stockHandler := NewStockHandler(deps.StockUC)
	stock.Get("/", stockHandler.Snapshot)
	stock.Get("/:product_id/:branch_id", stockHandler.Quantity)

	reports := api.Group("/reports")
	reportHandler := NewReportHandler(deps.Reports)
	reports.Get("/movements", reportHandler.Movements)
}
