package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/application/inventory"
	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
	"github.com/jhoicas/stockflow/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

const (
	prodP   = "prod-p"
	branchA = "branch-a"
	branchB = "branch-b"
	branchC = "branch-c"
)

var (
	admin    = &entity.Actor{ID: "u-admin", Role: entity.RoleAdmin, Department: "ventas"}
	manager  = &entity.Actor{ID: "u-manager", Role: entity.RoleManager, Department: "logistica"}
	operator = &entity.Actor{ID: "u-op", Role: entity.RoleOperator, Department: "ventas"}
)

type fixture struct {
	store  *memory.Store
	cache  *cache.EntityCache
	ledger *inventory.Ledger
}

func newFixture(t *testing.T, policy inventory.DeletePolicy, opts ...memory.Option) *fixture {
	t.Helper()
	s := memory.New(opts...)
	ctx := context.Background()
	require.NoError(t, s.Products().Create(ctx, &entity.Product{ID: prodP, Code: "P-01", Name: "Palet", Department: "logistica"}))
	for _, b := range []entity.Branch{{ID: branchA, Code: "A", Name: "Filial A"}, {ID: branchB, Code: "B", Name: "Filial B"}, {ID: branchC, Code: "C", Name: "Filial C"}} {
		b := b
		require.NoError(t, s.Branches().Create(ctx, &b))
	}
	c := cache.New(cache.Sources{
		Products: s.Products(), Branches: s.Branches(), Stock: s.Stock(), Movements: s.Movements(),
	}, cache.Options{}, zerolog.Nop())
	l := inventory.NewLedger(s.TxRunner(), s.Products(), s.Branches(), s.Movements(), c,
		inventory.Config{DeletePolicy: policy}, zerolog.Nop())
	return &fixture{store: s, cache: c, ledger: l}
}

func (f *fixture) stock(t *testing.T, branchID string) int64 {
	t.Helper()
	st, err := f.store.Stock().Get(context.Background(), prodP, branchID)
	require.NoError(t, err)
	if st == nil {
		return 0
	}
	return st.Quantity
}

func (f *fixture) movementCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.store.Movements().Query(context.Background(), repository.MovementFilter{})
	require.NoError(t, err)
	return total
}

func (f *fixture) record(t *testing.T, in inventory.MovementInput) *entity.Movement {
	t.Helper()
	m, err := f.ledger.RecordMovement(context.Background(), admin, in)
	require.NoError(t, err)
	return m
}

func inbound(branch string, qty int64) inventory.MovementInput {
	return inventory.MovementInput{ProductID: prodP, OriginBranchID: branch, Quantity: qty, Type: entity.MovementInbound}
}

func outbound(branch string, qty int64) inventory.MovementInput {
	return inventory.MovementInput{ProductID: prodP, OriginBranchID: branch, Quantity: qty, Type: entity.MovementOutbound}
}

func transfer(from, to string, qty int64) inventory.MovementInput {
	in := outbound(from, qty)
	in.DestinationBranchID = to
	return in
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordMovement_EntradaYTraslado(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)

	m := f.record(t, inbound(branchA, 50))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Palet", m.ProductName)
	assert.Equal(t, "P-01", m.ProductCode)
	assert.Equal(t, entity.Department("logistica"), m.ProductDepartment)
	assert.Equal(t, admin.ID, m.CreatedBy)
	assert.Equal(t, int64(50), f.stock(t, branchA))

	tr := f.record(t, transfer(branchA, branchB, 20))
	assert.True(t, tr.IsTransfer())
	assert.Equal(t, int64(30), f.stock(t, branchA))
	assert.Equal(t, int64(20), f.stock(t, branchB))
	assert.Equal(t, 2, f.movementCount(t))

	// conservación: la suma A+B no cambia y C no se toca
	f.record(t, transfer(branchB, branchA, 5))
	assert.Equal(t, int64(50), f.stock(t, branchA)+f.stock(t, branchB))
	assert.Equal(t, int64(0), f.stock(t, branchC))
}

func TestRecordMovement_StockInsuficienteNoModifica(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	f.record(t, inbound(branchA, 5))

	_, err := f.ledger.RecordMovement(context.Background(), admin, outbound(branchA, 10))
	require.Error(t, err)
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(5), insufficient.Available)
	assert.Contains(t, err.Error(), "5")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, int64(5), f.stock(t, branchA))
	assert.Equal(t, 1, f.movementCount(t))
}

func TestRecordMovement_SalidaSinRegistroDeStock(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)

	_, err := f.ledger.RecordMovement(context.Background(), admin, outbound(branchA, 1))
	assert.ErrorIs(t, err, domain.ErrNoStockRecord)
	assert.Equal(t, 0, f.movementCount(t))
}

func TestRecordMovement_SalidasConcurrentesSoloUnaGana(t *testing.T) {
	cases := []struct {
		name string
		opts []memory.Option
	}{
		{name: "transaccional"},
		{name: "sin_transacciones", opts: []memory.Option{memory.WithoutTransactions()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, inventory.DeleteKeepStock, tc.opts...)
			f.record(t, inbound(branchA, 10))

			var wg sync.WaitGroup
			errs := make([]error, 2)
			start := make(chan struct{})
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = f.ledger.RecordMovement(context.Background(), admin, outbound(branchA, 8))
				}(i)
			}
			close(start)
			wg.Wait()

			ok, rejected := 0, 0
			for _, err := range errs {
				if err == nil {
					ok++
					continue
				}
				var insufficient *domain.InsufficientStockError
				if assert.ErrorAs(t, err, &insufficient) {
					assert.Equal(t, int64(2), insufficient.Available)
					rejected++
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, 1, rejected)
			assert.Equal(t, int64(2), f.stock(t, branchA))
			assert.Equal(t, 2, f.movementCount(t))
		})
	}
}

func TestRecordMovement_TrasladosCruzadosNoSeBloquean(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	f.record(t, inbound(branchA, 100))
	f.record(t, inbound(branchB, 100))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RecordMovement(context.Background(), admin, transfer(branchA, branchB, 1))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.ledger.RecordMovement(context.Background(), admin, transfer(branchB, branchA, 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(200), f.stock(t, branchA)+f.stock(t, branchB))
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación y autorización
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordMovement_Validacion(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)

	cases := []struct {
		name  string
		in    inventory.MovementInput
		field string
	}{
		{"cantidad_cero", inbound(branchA, 0), "quantity"},
		{"cantidad_negativa", inbound(branchA, -3), "quantity"},
		{"sin_producto", inventory.MovementInput{OriginBranchID: branchA, Quantity: 1, Type: entity.MovementInbound}, "product_id"},
		{"sin_origen", inventory.MovementInput{ProductID: prodP, Quantity: 1, Type: entity.MovementInbound}, "origin_branch_id"},
		{"tipo_desconocido", inventory.MovementInput{ProductID: prodP, OriginBranchID: branchA, Quantity: 1, Type: "ajuste"}, "type"},
		{"destino_en_entrada", func() inventory.MovementInput { in := inbound(branchA, 1); in.DestinationBranchID = branchB; return in }(), "destination_branch_id"},
		{"destino_igual_origen", transfer(branchA, branchA, 1), "destination_branch_id"},
		{"request_id_invalido", func() inventory.MovementInput { in := inbound(branchA, 1); in.RequestID = "abc"; return in }(), "request_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RecordMovement(context.Background(), admin, tc.in)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Equal(t, 0, f.movementCount(t))
}

func TestRecordMovement_ReferenciasInexistentes(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)

	in := inbound(branchA, 1)
	in.ProductID = "no-existe"
	_, err := f.ledger.RecordMovement(context.Background(), admin, in)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.RecordMovement(context.Background(), admin, inbound("sucursal-x", 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.RecordMovement(context.Background(), admin, transfer(branchA, "sucursal-x", 1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordMovement_ProductoCreadoDespuesDeCargarCache(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	ctx := context.Background()
	require.NoError(t, f.cache.EnsureLoaded(ctx))
	require.NoError(t, f.store.Products().Create(ctx, &entity.Product{ID: "prod-q", Code: "Q", Name: "Nuevo", Department: "ventas"}))

	in := inbound(branchA, 3)
	in.ProductID = "prod-q"
	m, err := f.ledger.RecordMovement(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", m.ProductName)
}

func TestRecordMovement_Autorizacion(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)

	_, err := f.ledger.RecordMovement(context.Background(), nil, inbound(branchA, 1))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// operador de ventas no mueve productos de logística
	_, err = f.ledger.RecordMovement(context.Background(), operator, inbound(branchA, 1))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.ledger.RecordMovement(context.Background(), manager, inbound(branchA, 1))
	assert.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia y fallas parciales
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordMovement_RequestIDRepetidoNoDuplica(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	in := inbound(branchA, 7)
	in.RequestID = uuid.NewString()

	first := f.record(t, in)
	second := f.record(t, in)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(7), f.stock(t, branchA))
	assert.Equal(t, 1, f.movementCount(t))
}

func TestRecordMovement_TransaccionRevierteSiFallaElRegistro(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	f.record(t, inbound(branchA, 10))
	f.store.InjectFault(memory.OpMovementsCreate, errors.New("insert caído"))

	_, err := f.ledger.RecordMovement(context.Background(), admin, transfer(branchA, branchB, 4))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPartialEffect)
	assert.Equal(t, int64(10), f.stock(t, branchA))
	assert.Equal(t, int64(0), f.stock(t, branchB))
}

func TestRecordMovement_SinTransaccionesCompensa(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock, memory.WithoutTransactions())
	f.record(t, inbound(branchA, 10))
	f.store.InjectFault(memory.OpMovementsCreate, errors.New("insert caído"))

	_, err := f.ledger.RecordMovement(context.Background(), admin, transfer(branchA, branchB, 4))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPartialEffect)
	assert.Equal(t, int64(10), f.stock(t, branchA))
	assert.Equal(t, int64(0), f.stock(t, branchB))
	assert.Equal(t, 1, f.movementCount(t))
}

func TestRecordMovement_CompensacionQuitaFilaCreada(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock, memory.WithoutTransactions())
	f.store.InjectFault(memory.OpMovementsCreate, errors.New("insert caído"))

	_, err := f.ledger.RecordMovement(context.Background(), admin, inbound(branchA, 5))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPartialEffect)

	st, err := f.store.Stock().Get(context.Background(), prodP, branchA)
	require.NoError(t, err)
	assert.Nil(t, st, "la fila no existía antes de la entrada")

	_, err = f.ledger.RecordMovement(context.Background(), admin, outbound(branchA, 1))
	assert.ErrorIs(t, err, domain.ErrNoStockRecord)
}

func TestRecordMovement_CompensacionFallidaEsEfectoParcial(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock, memory.WithoutTransactions())
	f.record(t, inbound(branchA, 10))

	insertErr := errors.New("insert caído")
	f.store.InjectFault(memory.OpMovementsCreate, insertErr)
	// el ajuste del origen pasa; el de compensación falla
	f.store.InjectFault(memory.OpStockAdjust, nil, errors.New("red caída"))

	_, err := f.ledger.RecordMovement(context.Background(), admin, outbound(branchA, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialEffect)
	assert.ErrorIs(t, err, insertErr)

	var partial *domain.PartialEffectError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Applied, 1)
	assert.Equal(t, domain.StockEffect{ProductID: prodP, BranchID: branchA, Delta: -4}, partial.Applied[0])
	assert.Error(t, partial.CompensationErr)

	// el efecto quedó aplicado sin movimiento: es lo que se reporta
	assert.Equal(t, int64(6), f.stock(t, branchA))
	assert.Equal(t, 1, f.movementCount(t))
}

// ──────────────────────────────────────────────────────────────────────────────
// Caché
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordMovement_LeeLoQueEscribe(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	ctx := context.Background()
	require.NoError(t, f.cache.EnsureLoaded(ctx))
	require.NoError(t, f.cache.EnsureMovements(ctx))
	f.cache.SetPage(cache.PageKey{Page: 1, PageSize: 50}, cache.Page{})

	m := f.record(t, inbound(branchA, 10))

	assert.False(t, f.cache.Loaded(cache.KindBranchStock))
	assert.False(t, f.cache.Loaded(cache.KindMovements))
	assert.True(t, f.cache.Loaded(cache.KindProducts))
	assert.Equal(t, 0, f.cache.PageCount())

	require.NoError(t, f.cache.EnsureLoaded(ctx))
	st, ok := f.cache.Stock(prodP, branchA)
	require.True(t, ok)
	assert.Equal(t, int64(10), st.Quantity)

	require.NoError(t, f.cache.EnsureMovements(ctx))
	recent, _ := f.cache.RecentMovements()
	require.Len(t, recent, 1)
	assert.Equal(t, m.ID, recent[0].ID)
}

func TestRecordMovement_RelojInyectado(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	f.ledger.SetClock(func() time.Time { return fixed })

	m := f.record(t, inbound(branchA, 1))
	assert.Equal(t, fixed, m.CreatedAt)
}

// ──────────────────────────────────────────────────────────────────────────────
// Borrado
// ──────────────────────────────────────────────────────────────────────────────

func TestDeleteMovement_ConservaStockPorDefecto(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, inventory.DeleteKeepStock, f.ledger.Policy())
	m := f.record(t, inbound(branchA, 10))

	require.NoError(t, f.ledger.DeleteMovement(context.Background(), admin, m.ID))
	assert.Equal(t, int64(10), f.stock(t, branchA))
	assert.Equal(t, 0, f.movementCount(t))

	assert.ErrorIs(t, f.ledger.DeleteMovement(context.Background(), admin, m.ID), domain.ErrNotFound)
}

func TestDeleteMovement_RevierteTraslado(t *testing.T) {
	f := newFixture(t, inventory.DeleteReverseStock)
	f.record(t, inbound(branchA, 50))
	tr := f.record(t, transfer(branchA, branchB, 20))

	require.NoError(t, f.ledger.DeleteMovement(context.Background(), admin, tr.ID))
	assert.Equal(t, int64(50), f.stock(t, branchA))
	assert.Equal(t, int64(0), f.stock(t, branchB))
	assert.Equal(t, 1, f.movementCount(t))
}

func TestDeleteMovement_ReversionSinStockFalla(t *testing.T) {
	f := newFixture(t, inventory.DeleteReverseStock)
	in := f.record(t, inbound(branchA, 10))
	f.record(t, outbound(branchA, 8))

	err := f.ledger.DeleteMovement(context.Background(), admin, in.ID)
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(2), insufficient.Available)
	assert.Equal(t, int64(2), f.stock(t, branchA))
	assert.Equal(t, 2, f.movementCount(t))
}

func TestDeleteMovement_Autorizacion(t *testing.T) {
	f := newFixture(t, inventory.DeleteKeepStock)
	m := f.record(t, inbound(branchA, 10))

	assert.ErrorIs(t, f.ledger.DeleteMovement(context.Background(), operator, m.ID), domain.ErrForbidden)
	assert.ErrorIs(t, f.ledger.DeleteMovement(context.Background(), nil, m.ID), domain.ErrUnauthorized)

	var verr *domain.ValidationError
	assert.ErrorAs(t, f.ledger.DeleteMovement(context.Background(), admin, "no-uuid"), &verr)

	assert.NoError(t, f.ledger.DeleteMovement(context.Background(), manager, m.ID))
}
