package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/application/inventory"
	"github.com/jhoicas/stockflow/internal/application/report"
	"github.com/jhoicas/stockflow/internal/application/usecase"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/infrastructure/memory"
	"github.com/jhoicas/stockflow/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stockflow/internal/interfaces/http"
	"github.com/jhoicas/stockflow/pkg/config"
	"github.com/jhoicas/stockflow/pkg/logger"
	"github.com/jhoicas/stockflow/pkg/retry"
)

const swaggerFile = "./docs/swagger.json"

// storage lo que cada driver aporta al resto del wiring.
type storage struct {
	sources cache.Sources
	tx      inventory.TxRunner
	pinger  httpRouter.Pinger
	pool    *pgxpool.Pool // nil con el driver en memoria
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, ok := inventory.ParseDeletePolicy(cfg.Inventory.DeletePolicy)
	if !ok {
		log.Fatal().Str("policy", cfg.Inventory.DeletePolicy).Msg("MOVEMENT_DELETE_POLICY inválida")
	}
	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.Report.Timezone).Msg("REPORT_TIMEZONE inválida")
	}
	depts := entity.NewDepartmentSet(cfg.Inventory.Departments...)
	readRetry := retry.DefaultPolicy()
	readRetry.Attempts = cfg.Inventory.ReadRetryAttempts

	zl := log.Zerolog()
	st, err := openStorage(ctx, cfg, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir almacenamiento")
	}
	defer st.close()

	entityCache := cache.New(st.sources, cache.Options{
		RecentMovements: cfg.Inventory.RecentMovements,
		LoadTimeout:     15 * time.Second,
		Retry:           readRetry,
	}, zl)

	productUC := usecase.NewProductUseCase(st.sources.Products, entityCache, depts, zl)
	branchUC := usecase.NewBranchUseCase(st.sources.Branches, entityCache, zl)
	stockUC := usecase.NewStockUseCase(entityCache)
	ledger := inventory.NewLedger(st.tx, st.sources.Products, st.sources.Branches, st.sources.Movements,
		entityCache, inventory.Config{DeletePolicy: policy}, zl)
	reports := report.NewEngine(st.sources.Movements, entityCache, report.Config{
		DefaultPageSize: cfg.Report.DefaultPageSize,
		MaxPageSize:     cfg.Report.MaxPageSize,
		Location:        loc,
		Departments:     depts,
		Retry:           readRetry,
	}, zl)

	// Precarga; si falla, la primera lectura vuelve a intentar.
	go func() {
		if err := entityCache.EnsureLoaded(ctx); err != nil {
			log.Warn().Err(err).Msg("precarga de caché fallida")
		}
	}()
	if cfg.ChangeFeed.Enabled && st.pool != nil {
		feed := postgres.NewChangeFeed(st.pool, entityCache, zl)
		go func() { _ = feed.Run(ctx) }()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: httpRouter.ErrorHandler(zl),
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Stockflow API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProductUC: productUC,
		BranchUC:  branchUC,
		StockUC:   stockUC,
		Ledger:    ledger,
		Reports:   reports,
		Store:     st.pinger,
		Service:   cfg.App.Name,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.DB.Driver == config.StoreMemory {
		s := memory.New()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		return &storage{
			sources: cache.Sources{Products: s.Products(), Branches: s.Branches(), Stock: s.Stock(), Movements: s.Movements()},
			tx:      s.TxRunner(),
			pinger:  s,
			close:   func() {},
		}, nil
	}

	if cfg.DB.AutoMigrate {
		m, err := postgres.NewMigrator(cfg.DB.ConnectionString(), log)
		if err != nil {
			return nil, err
		}
		err = m.Up()
		if cerr := m.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("cerrar migrador")
		}
		if err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &storage{
		sources: cache.Sources{
			Products:  postgres.NewProductRepository(pool),
			Branches:  postgres.NewBranchRepository(pool),
			Stock:     postgres.NewBranchStockRepository(pool),
			Movements: postgres.NewMovementRepository(pool),
		},
		tx:     postgres.NewTxRunner(pool),
		pinger: postgres.NewPinger(pool),
		pool:   pool,
		close:  pool.Close,
	}, nil
}
