package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockflow/internal/application/access"
	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

// Límites de los campos libres de un movimiento.
const (
	maxNotesLen   = 500
	maxInvoiceLen = 60
)

// DeletePolicy define qué pasa con el stock al borrar un movimiento.
type DeletePolicy string

// Políticas de borrado.
const (
	DeleteKeepStock    DeletePolicy = "keep_stock"    // sólo se borra el registro
	DeleteReverseStock DeletePolicy = "reverse_stock" // se revierte el efecto sobre el stock
)

// ParseDeletePolicy valida el valor de configuración.
func ParseDeletePolicy(s string) (DeletePolicy, bool) {
	switch DeletePolicy(s) {
	case DeleteKeepStock, DeleteReverseStock:
		return DeletePolicy(s), true
	}
	return "", false
}

// Config opciones del motor de inventario.
type Config struct {
	DeletePolicy DeletePolicy
}

// MovementInput entrada para registrar un movimiento.
// DestinationBranchID sólo se admite en salidas y la convierte en traslado.
type MovementInput struct {
	RequestID           string
	ProductID           string
	OriginBranchID      string
	DestinationBranchID string
	Quantity            int64
	Type                entity.MovementType
	Notes               string
	InvoiceNumber       string
}

// Ledger es el único camino autorizado para crear o borrar movimientos y ajustar el
// stock por sucursal. Garantiza que el stock nunca quede negativo y que los traslados
// afecten origen y destino como una sola operación.
type Ledger struct {
	tx        TxRunner
	products  repository.ProductRepository
	branches  repository.BranchRepository
	movements repository.MovementRepository
	cache     Cache
	policy    DeletePolicy
	locks     *keyedMutex
	log       zerolog.Logger
	now       func() time.Time
}

// NewLedger construye el motor.
func NewLedger(
	tx TxRunner,
	products repository.ProductRepository,
	branches repository.BranchRepository,
	movements repository.MovementRepository,
	c Cache,
	cfg Config,
	log zerolog.Logger,
) *Ledger {
	if cfg.DeletePolicy == "" {
		cfg.DeletePolicy = DeleteKeepStock
	}
	return &Ledger{
		tx:        tx,
		products:  products,
		branches:  branches,
		movements: movements,
		cache:     c,
		policy:    cfg.DeletePolicy,
		locks:     newKeyedMutex(),
		log:       log.With().Str("component", "ledger").Logger(),
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj (tests).
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Policy política de borrado vigente.
func (l *Ledger) Policy() DeletePolicy { return l.policy }

// RecordMovement valida, aplica el efecto sobre el stock y persiste el movimiento.
//
// Orden de precondiciones: el producto existe; en salidas existe la fila de stock
// de origen (ErrNoStockRecord); en salidas hay cantidad suficiente
// (*InsufficientStockError con lo disponible).
//
// Con RequestID repetido devuelve el movimiento ya registrado sin volver a aplicar stock.
// Nunca se reintenta automáticamente.
func (l *Ledger) RecordMovement(ctx context.Context, actor *entity.Actor, in MovementInput) (*entity.Movement, error) {
	if err := access.CheckPermission(actor, access.AnyRole...); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	view, err := l.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	product, err := l.resolveProduct(ctx, view, in.ProductID)
	if err != nil {
		return nil, err
	}
	if err := access.CheckDepartment(actor, product.Department); err != nil {
		return nil, err
	}
	if err := l.requireBranch(ctx, view, "origin_branch_id", in.OriginBranchID); err != nil {
		return nil, err
	}
	if in.DestinationBranchID != "" {
		if err := l.requireBranch(ctx, view, "destination_branch_id", in.DestinationBranchID); err != nil {
			return nil, err
		}
	}

	now := l.now().UTC()
	mov := &entity.Movement{
		ID:                  uuid.NewString(),
		RequestID:           in.RequestID,
		ProductID:           product.ID,
		OriginBranchID:      in.OriginBranchID,
		DestinationBranchID: in.DestinationBranchID,
		Quantity:            in.Quantity,
		Type:                in.Type,
		Notes:               in.Notes,
		InvoiceNumber:       in.InvoiceNumber,
		ProductName:         product.Name,
		ProductCode:         product.Code,
		ProductDepartment:   product.Department,
		CreatedBy:           actor.ID,
		CreatedAt:           now,
	}

	// Exclusión por (producto, sucursal) durante todo el chequeo y actualización.
	unlock := l.locks.Lock(stockKey(mov.ProductID, mov.OriginBranchID), stockKey(mov.ProductID, mov.DestinationBranchID))
	defer unlock()

	var (
		result  *entity.Movement
		replay  bool
		touched bool
	)
	err = l.tx.Run(ctx, func(movRepo repository.MovementRepository, stockRepo repository.BranchStockRepository) error {
		if mov.RequestID != "" {
			prev, err := movRepo.GetByRequestID(ctx, mov.RequestID)
			if err != nil {
				return err
			}
			if prev != nil {
				result, replay = prev, true
				return nil
			}
		}

		origin, err := stockRepo.GetForUpdate(ctx, mov.ProductID, mov.OriginBranchID)
		if err != nil {
			return err
		}
		if mov.Type == entity.MovementOutbound {
			if origin == nil {
				return domain.ErrNoStockRecord
			}
			if origin.Quantity < mov.Quantity {
				return &domain.InsufficientStockError{
					ProductID: mov.ProductID,
					BranchID:  mov.OriginBranchID,
					Available: origin.Quantity,
					Requested: mov.Quantity,
				}
			}
		}

		fx := l.newEffects(ctx, stockRepo)
		touched = true
		delta := mov.Quantity
		if mov.Type == entity.MovementOutbound {
			delta = -delta
		}
		if err := fx.apply(origin, mov.ProductID, mov.OriginBranchID, delta, now); err != nil {
			return fx.fail(err)
		}
		if mov.IsTransfer() {
			dest, err := stockRepo.GetForUpdate(ctx, mov.ProductID, mov.DestinationBranchID)
			if err != nil {
				return fx.fail(err)
			}
			if err := fx.apply(dest, mov.ProductID, mov.DestinationBranchID, mov.Quantity, now); err != nil {
				return fx.fail(err)
			}
		}

		if err := movRepo.Create(ctx, mov); err != nil {
			if fx.landed(movRepo, mov.ID, err) {
				result = mov
				return nil
			}
			return fx.fail(fmt.Errorf("registrar movimiento: %w", err))
		}
		result = mov
		return nil
	})

	if touched && (err == nil || !l.tx.Atomic()) {
		l.invalidateAfterWrite(true)
	}
	if err != nil && mov.RequestID != "" && errors.Is(err, domain.ErrDuplicate) && !errors.Is(err, domain.ErrPartialEffect) {
		// Otro proceso registró el mismo request_id entre la consulta y el insert.
		if prev, perr := l.movements.GetByRequestID(ctx, mov.RequestID); perr == nil && prev != nil {
			result, replay, err = prev, true, nil
		}
	}
	if err != nil {
		l.logFailure(err, mov)
		return nil, err
	}
	if replay {
		l.log.Info().Str("movement_id", result.ID).Str("request_id", mov.RequestID).Msg("movimiento repetido; se devuelve el existente")
		return result, nil
	}

	l.log.Info().
		Str("movement_id", result.ID).
		Str("type", string(result.Type)).
		Str("product_id", result.ProductID).
		Str("origin_branch_id", result.OriginBranchID).
		Str("destination_branch_id", result.DestinationBranchID).
		Int64("quantity", result.Quantity).
		Str("actor_id", actor.ID).
		Msg("movimiento registrado")
	return result, nil
}

// DeleteMovement borra un movimiento por id. Con DeleteKeepStock el stock no se toca;
// con DeleteReverseStock se revierte el efecto original en la misma unidad de trabajo
// y falla con *InsufficientStockError si la reversión dejaría stock negativo.
func (l *Ledger) DeleteMovement(ctx context.Context, actor *entity.Actor, id string) error {
	if err := access.CheckPermission(actor, access.CatalogEdit...); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.NewValidationError("id", "debe ser un UUID")
	}

	mov, err := l.movements.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if mov == nil {
		return domain.ErrNotFound
	}
	if err := access.CheckDepartment(actor, mov.ProductDepartment); err != nil {
		return err
	}

	if l.policy != DeleteReverseStock {
		err := l.tx.Run(ctx, func(movRepo repository.MovementRepository, _ repository.BranchStockRepository) error {
			return movRepo.Delete(ctx, id)
		})
		if err != nil {
			return err
		}
		l.invalidateAfterWrite(false)
		l.log.Info().Str("movement_id", id).Str("policy", string(l.policy)).Str("actor_id", actor.ID).Msg("movimiento borrado")
		return nil
	}

	unlock := l.locks.Lock(stockKey(mov.ProductID, mov.OriginBranchID), stockKey(mov.ProductID, mov.DestinationBranchID))
	defer unlock()

	now := l.now().UTC()
	touched := false
	err = l.tx.Run(ctx, func(movRepo repository.MovementRepository, stockRepo repository.BranchStockRepository) error {
		// Los decrementos primero: si alguno no alcanza no se tocó nada.
		type step struct {
			branchID string
			delta    int64
		}
		var steps []step
		switch {
		case mov.IsTransfer():
			steps = []step{{mov.DestinationBranchID, -mov.Quantity}, {mov.OriginBranchID, mov.Quantity}}
		case mov.Type == entity.MovementOutbound:
			steps = []step{{mov.OriginBranchID, mov.Quantity}}
		default:
			steps = []step{{mov.OriginBranchID, -mov.Quantity}}
		}

		fx := l.newEffects(ctx, stockRepo)
		for _, s := range steps {
			row, err := stockRepo.GetForUpdate(ctx, mov.ProductID, s.branchID)
			if err != nil {
				return fx.fail(err)
			}
			if s.delta < 0 {
				var available int64
				if row != nil {
					available = row.Quantity
				}
				if available < -s.delta {
					return fx.fail(&domain.InsufficientStockError{
						ProductID: mov.ProductID,
						BranchID:  s.branchID,
						Available: available,
						Requested: -s.delta,
					})
				}
			}
			touched = true
			if err := fx.apply(row, mov.ProductID, s.branchID, s.delta, now); err != nil {
				return fx.fail(err)
			}
		}
		if err := movRepo.Delete(ctx, id); err != nil {
			return fx.fail(fmt.Errorf("borrar movimiento: %w", err))
		}
		return nil
	})
	if touched && (err == nil || !l.tx.Atomic()) {
		l.invalidateAfterWrite(true)
	}
	if err != nil {
		l.logFailure(err, mov)
		return err
	}
	l.log.Info().Str("movement_id", id).Str("policy", string(l.policy)).Str("actor_id", actor.ID).Msg("movimiento borrado con reversión de stock")
	return nil
}

// resolveProduct busca primero en caché y, si no está, directo en el almacenamiento
// (el producto pudo crearse en otro proceso antes de que llegue el cambio).
func (l *Ledger) resolveProduct(ctx context.Context, view cache.View, id string) (entity.Product, error) {
	if p, ok := view.Product(id); ok {
		return p, nil
	}
	p, err := l.products.GetByID(ctx, id)
	if err != nil {
		return entity.Product{}, err
	}
	if p == nil {
		return entity.Product{}, fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	return *p, nil
}

func (l *Ledger) requireBranch(ctx context.Context, view cache.View, field, id string) error {
	if _, ok := view.Branch(id); ok {
		return nil
	}
	b, err := l.branches.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%s %s: %w", field, id, domain.ErrNotFound)
	}
	return nil
}

func (l *Ledger) invalidateAfterWrite(stock bool) {
	if stock {
		l.cache.Invalidate(cache.KindBranchStock)
	}
	l.cache.Invalidate(cache.KindMovements)
	l.cache.InvalidatePages()
}

func (l *Ledger) logFailure(err error, mov *entity.Movement) {
	var partial *domain.PartialEffectError
	if errors.As(err, &partial) {
		ev := l.log.Error().
			Err(err).
			Bool("partial_effect", true).
			Str("movement_id", mov.ID).
			Str("product_id", mov.ProductID).
			Str("origin_branch_id", mov.OriginBranchID).
			Str("destination_branch_id", mov.DestinationBranchID).
			Int64("quantity", mov.Quantity)
		for i, a := range partial.Applied {
			ev = ev.Str(fmt.Sprintf("applied_%d", i), fmt.Sprintf("%s/%s %+d", a.ProductID, a.BranchID, a.Delta))
		}
		ev.Msg("EFECTO PARCIAL: stock modificado sin movimiento consistente, requiere conciliación")
		return
	}
	if errors.Is(err, domain.ErrTransientStore) {
		l.log.Warn().Err(err).Str("movement_id", mov.ID).Msg("almacenamiento no disponible durante el movimiento")
	}
}

func validateInput(in MovementInput) error {
	if in.RequestID != "" {
		if _, err := uuid.Parse(in.RequestID); err != nil {
			return domain.NewValidationError("request_id", "debe ser un UUID")
		}
	}
	if in.ProductID == "" {
		return domain.NewValidationError("product_id", "es obligatorio")
	}
	if in.OriginBranchID == "" {
		return domain.NewValidationError("origin_branch_id", "es obligatorio")
	}
	if in.Quantity <= 0 {
		return domain.NewValidationError("quantity", "debe ser un entero positivo")
	}
	if _, ok := entity.ParseMovementType(string(in.Type)); !ok {
		return domain.NewValidationError("type", "debe ser inbound u outbound")
	}
	if in.DestinationBranchID != "" {
		if in.Type != entity.MovementOutbound {
			return domain.NewValidationError("destination_branch_id", "sólo se admite en salidas")
		}
		if in.DestinationBranchID == in.OriginBranchID {
			return domain.NewValidationError("destination_branch_id", "debe ser distinta de la sucursal de origen")
		}
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLen {
		return domain.NewValidationError("notes", fmt.Sprintf("máximo %d caracteres", maxNotesLen))
	}
	if utf8.RuneCountInString(in.InvoiceNumber) > maxInvoiceLen {
		return domain.NewValidationError("invoice_number", fmt.Sprintf("máximo %d caracteres", maxInvoiceLen))
	}
	return nil
}

func stockKey(productID, branchID string) string {
	if branchID == "" {
		return ""
	}
	return entity.StockKey{ProductID: productID, BranchID: branchID}.String()
}
