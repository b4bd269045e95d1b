package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
	"github.com/jhoicas/stockflow/internal/infrastructure/memory"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func seedMovements(t *testing.T, s *memory.Store) {
	t.Helper()
	ctx := context.Background()
	movs := []entity.Movement{
		{ID: "m1", ProductID: "p1", OriginBranchID: "b1", Quantity: 5, Type: entity.MovementInbound, ProductDepartment: "ventas", CreatedAt: base},
		{ID: "m2", ProductID: "p1", OriginBranchID: "b1", Quantity: 2, Type: entity.MovementOutbound, ProductDepartment: "ventas", CreatedAt: base.Add(time.Hour)},
		{ID: "m3", ProductID: "p2", OriginBranchID: "b2", Quantity: 1, Type: entity.MovementOutbound, ProductDepartment: "logistica", CreatedAt: base.Add(time.Hour)},
		{ID: "m4", ProductID: "p2", OriginBranchID: "b2", Quantity: 9, Type: entity.MovementInbound, ProductDepartment: "logistica", CreatedAt: base.Add(48 * time.Hour)},
	}
	for i := range movs {
		require.NoError(t, s.Movements().Create(ctx, &movs[i]))
	}
}

func ids(list []*entity.Movement) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

func TestMovementRepo_QueryOrdenYTotal(t *testing.T) {
	s := memory.New()
	seedMovements(t, s)

	list, total, err := s.Movements().Query(context.Background(), repository.MovementFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	// created_at DESC y desempate por id DESC
	assert.Equal(t, []string{"m4", "m3"}, ids(list))

	list, total, err = s.Movements().Query(context.Background(), repository.MovementFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"m2", "m1"}, ids(list))

	list, _, err = s.Movements().Query(context.Background(), repository.MovementFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMovementRepo_QueryFiltros(t *testing.T) {
	s := memory.New()
	seedMovements(t, s)
	ctx := context.Background()

	list, total, err := s.Movements().Query(ctx, repository.MovementFilter{Type: entity.MovementOutbound})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"m3", "m2"}, ids(list))

	list, _, err = s.Movements().Query(ctx, repository.MovementFilter{Department: "ventas"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1"}, ids(list))

	from, to := base, base.Add(time.Hour)
	list, _, err = s.Movements().Query(ctx, repository.MovementFilter{From: &from, To: &to, OriginBranchID: "b2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3"}, ids(list))
}

func TestMovementRepo_RequestIDDuplicado(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Movements().Create(ctx, &entity.Movement{ID: "a", RequestID: "r1", CreatedAt: base}))

	err := s.Movements().Create(ctx, &entity.Movement{ID: "b", RequestID: "r1", CreatedAt: base})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	got, err := s.Movements().GetByRequestID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)

	require.NoError(t, s.Movements().Delete(ctx, "a"))
	got, err = s.Movements().GetByRequestID(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.Movements().Delete(ctx, "a"), domain.ErrNotFound)
}

func TestTxRunner_AtomicoRestauraAnteError(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Stock().Upsert(ctx, &entity.BranchStock{ProductID: "p1", BranchID: "b1", Quantity: 10}))
	tx := s.TxRunner()
	require.True(t, tx.Atomic())

	boom := errors.New("boom")
	err := tx.Run(ctx, func(movRepo repository.MovementRepository, stockRepo repository.BranchStockRepository) error {
		require.NoError(t, stockRepo.Upsert(ctx, &entity.BranchStock{ProductID: "p1", BranchID: "b1", Quantity: 2}))
		require.NoError(t, movRepo.Create(ctx, &entity.Movement{ID: "m1", RequestID: "r1", CreatedAt: base}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	st, err := s.Stock().Get(ctx, "p1", "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Quantity)
	m, err := s.Movements().GetByRequestID(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestTxRunner_SinTransaccionesDejaEfectos(t *testing.T) {
	s := memory.New(memory.WithoutTransactions())
	ctx := context.Background()
	tx := s.TxRunner()
	require.False(t, tx.Atomic())

	err := tx.Run(ctx, func(_ repository.MovementRepository, stockRepo repository.BranchStockRepository) error {
		require.NoError(t, stockRepo.Upsert(ctx, &entity.BranchStock{ProductID: "p1", BranchID: "b1", Quantity: 3}))
		return errors.New("falla")
	})
	require.Error(t, err)

	st, err := s.Stock().Get(ctx, "p1", "b1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(3), st.Quantity)
}

func TestStore_InyeccionDeFallas(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	s.InjectFault(memory.OpProductsList, domain.ErrTransientStore)

	_, err := s.Products().List(ctx)
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	_, err = s.Products().List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Calls(memory.OpProductsList))
}

func TestCatalog_Unicidad(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	require.NoError(t, s.Products().Create(ctx, &entity.Product{ID: "p1", Code: "A1", Department: "ventas"}))
	require.NoError(t, s.Products().Create(ctx, &entity.Product{ID: "p2", Code: "A1", Department: "logistica"}))
	assert.ErrorIs(t, s.Products().Create(ctx, &entity.Product{ID: "p3", Code: "A1", Department: "ventas"}), domain.ErrDuplicate)

	require.NoError(t, s.Branches().Create(ctx, &entity.Branch{ID: "b1", Code: "SP"}))
	assert.ErrorIs(t, s.Branches().Create(ctx, &entity.Branch{ID: "b2", Code: "SP"}), domain.ErrDuplicate)
	assert.ErrorIs(t, s.Branches().Delete(ctx, "nope"), domain.ErrNotFound)
	assert.ErrorIs(t, s.Products().Update(ctx, &entity.Product{ID: "nope"}), domain.ErrNotFound)
}

func TestBranchStockRepo_AjusteAcumulaYRechazaNegativo(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	repo := s.Stock()

	st, err := repo.Adjust(ctx, "p1", "b1", 5, base)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Quantity)
	st, err = repo.Adjust(ctx, "p1", "b1", 5, base)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Quantity)

	_, err = repo.Adjust(ctx, "p1", "b1", -11, base)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.NoError(t, repo.Delete(ctx, "p1", "b1"))
	got, err := repo.Get(ctx, "p1", "b1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, repo.Delete(ctx, "p1", "b1"))
}

func TestMovementRepo_QueryRechazaDesplazamientoNegativo(t *testing.T) {
	s := memory.New()
	seedMovements(t, s)

	_, _, err := s.Movements().Query(context.Background(), repository.MovementFilter{Offset: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
