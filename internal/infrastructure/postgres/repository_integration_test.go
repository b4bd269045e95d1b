package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/application/inventory"
	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
	"github.com/jhoicas/stockflow/internal/infrastructure/postgres"
)

// Requieren una base descartable: TEST_DATABASE_URL=postgres://...
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	m, err := postgres.NewMigrator(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE products, branches, branch_stock, movements`)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgres_StockNuncaNegativo(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	stock := postgres.NewBranchStockRepository(pool)

	got, err := stock.Get(ctx, "p1", "b1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, stock.Upsert(ctx, &entity.BranchStock{ProductID: "p1", BranchID: "b1", Quantity: 4, UpdatedAt: time.Now()}))
	err = stock.Upsert(ctx, &entity.BranchStock{ProductID: "p1", BranchID: "b1", Quantity: -1, UpdatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, err = stock.Get(ctx, "p1", "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(4), got.Quantity)
}

func TestPostgres_DosTransaccionesCreanLaMismaFila(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	tx1, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx1.Rollback(ctx) //nolint:errcheck
	tx2, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx) //nolint:errcheck

	s1 := postgres.NewBranchStockRepository(tx1)
	s2 := postgres.NewBranchStockRepository(tx2)

	// ninguna ve fila: FOR UPDATE no bloquea nada
	got, err := s1.GetForUpdate(ctx, "p1", "b1")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s2.GetForUpdate(ctx, "p1", "b1")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s1.Adjust(ctx, "p1", "b1", 5, time.Now())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		// espera la PK de tx1 y luego suma sobre lo que dejó
		_, err := s2.Adjust(ctx, "p1", "b1", 5, time.Now())
		done <- err
	}()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, tx1.Commit(ctx))
	require.NoError(t, <-done)
	require.NoError(t, tx2.Commit(ctx))

	final, err := postgres.NewBranchStockRepository(pool).Get(ctx, "p1", "b1")
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, int64(10), final.Quantity)

	_, err = postgres.NewBranchStockRepository(pool).Adjust(ctx, "p1", "b1", -11, time.Now())
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestPostgres_LedgersSeparadosConservanStock(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, postgres.NewProductRepository(pool).Create(ctx, &entity.Product{
		ID: "p1", Code: "A1", Name: "Caja", Unit: "UN", Department: "ventas", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, postgres.NewBranchRepository(pool).Create(ctx, &entity.Branch{ID: "b1", Code: "CE", Name: "Centro", CreatedAt: now}))

	// dos procesos: cada uno con su caché y sus locks en memoria
	newLedger := func() *inventory.Ledger {
		products := postgres.NewProductRepository(pool)
		branches := postgres.NewBranchRepository(pool)
		movements := postgres.NewMovementRepository(pool)
		c := cache.New(cache.Sources{
			Products: products, Branches: branches, Stock: postgres.NewBranchStockRepository(pool), Movements: movements,
		}, cache.Options{}, zerolog.Nop())
		return inventory.NewLedger(postgres.NewTxRunner(pool), products, branches, movements, c, inventory.Config{}, zerolog.Nop())
	}
	ledgers := []*inventory.Ledger{newLedger(), newLedger()}
	admin := &entity.Actor{ID: "u1", Role: entity.RoleAdmin, Department: "ventas"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(l *inventory.Ledger) {
			defer wg.Done()
			_, err := l.RecordMovement(ctx, admin, inventory.MovementInput{
				ProductID: "p1", OriginBranchID: "b1", Quantity: 5, Type: entity.MovementInbound,
			})
			assert.NoError(t, err)
		}(ledgers[i%2])
	}
	wg.Wait()

	st, err := postgres.NewBranchStockRepository(pool).Get(ctx, "p1", "b1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(100), st.Quantity)

	// dos salidas de 96 contra 100 desde procesos distintos: sólo una pasa
	results := make(chan error, 2)
	for _, l := range ledgers {
		go func(l *inventory.Ledger) {
			_, err := l.RecordMovement(ctx, admin, inventory.MovementInput{
				ProductID: "p1", OriginBranchID: "b1", Quantity: 96, Type: entity.MovementOutbound,
			})
			results <- err
		}(l)
	}
	var ok, insufficient int
	for range ledgers {
		err := <-results
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Errorf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	st, err = postgres.NewBranchStockRepository(pool).Get(ctx, "p1", "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Quantity)
}

func TestPostgres_TxRunnerRevierteTodo(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	runner := postgres.NewTxRunner(pool)
	assert.True(t, runner.Atomic())

	err := runner.Run(ctx, func(movs repository.MovementRepository, stock repository.BranchStockRepository) error {
		require.NoError(t, stock.Upsert(ctx, &entity.BranchStock{ProductID: "p1", BranchID: "b1", Quantity: 9, UpdatedAt: time.Now()}))
		return domain.ErrNotFound
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := postgres.NewBranchStockRepository(pool).Get(ctx, "p1", "b1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgres_MovimientosConsultaYRequestID(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	movs := postgres.NewMovementRepository(pool)
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	reqID := uuid.NewString()

	for i, dept := range []entity.Department{"ventas", "logistica", "ventas"} {
		m := &entity.Movement{
			ID: uuid.NewString(), ProductID: "p1", OriginBranchID: "b1", Quantity: int64(i + 1),
			Type: entity.MovementInbound, ProductDepartment: dept, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if i == 0 {
			m.RequestID = reqID
		}
		require.NoError(t, movs.Create(ctx, m))
	}

	dup := &entity.Movement{ID: uuid.NewString(), RequestID: reqID, ProductID: "p1", OriginBranchID: "b1", Quantity: 1, Type: entity.MovementInbound, CreatedAt: base}
	assert.ErrorIs(t, movs.Create(ctx, dup), domain.ErrDuplicate)

	prev, err := movs.GetByRequestID(ctx, reqID)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(1), prev.Quantity)
	assert.Empty(t, prev.DestinationBranchID)

	list, total, err := movs.Query(ctx, repository.MovementFilter{Department: "ventas", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].Quantity)

	require.NoError(t, movs.Delete(ctx, prev.ID))
	assert.ErrorIs(t, movs.Delete(ctx, prev.ID), domain.ErrNotFound)
}

func TestPostgres_CatalogoUnicidad(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	products := postgres.NewProductRepository(pool)
	branches := postgres.NewBranchRepository(pool)
	now := time.Now().UTC()

	p := &entity.Product{ID: uuid.NewString(), Code: "A1", Name: "Caja", Unit: "UN", Department: "ventas", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, products.Create(ctx, p))
	other := *p
	other.ID = uuid.NewString()
	assert.ErrorIs(t, products.Create(ctx, &other), domain.ErrDuplicate)
	other.Department = "logistica"
	assert.NoError(t, products.Create(ctx, &other))

	p.Name = "Caja grande"
	require.NoError(t, products.Update(ctx, p))
	got, err := products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Caja grande", got.Name)
	assert.ErrorIs(t, products.Delete(ctx, "no-existe"), domain.ErrNotFound)

	b := &entity.Branch{ID: uuid.NewString(), Name: "Centro", Code: "CE", CreatedAt: now}
	require.NoError(t, branches.Create(ctx, b))
	assert.ErrorIs(t, branches.Create(ctx, &entity.Branch{ID: uuid.NewString(), Name: "X", Code: "CE", CreatedAt: now}), domain.ErrDuplicate)
	list, err := branches.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
