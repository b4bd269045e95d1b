package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// ChangeChannel canal fijo de los triggers de la migración inicial (notify_stock_change).
// Cambiarlo exige una migración nueva.
const ChangeChannel = "stock_changes"

// ChangeSink destino de los cambios recibidos (la caché de entidades).
type ChangeSink interface {
	ApplyChange(ch cache.Change)
	Invalidate(kind cache.Kind)
}

var _ ChangeSink = (*cache.EntityCache)(nil)

// ChangeFeed escucha NOTIFY sobre una conexión dedicada del pool y parchea la caché.
// Al (re)conectar invalida todas las colecciones: lo ocurrido mientras no había
// conexión no llegó por el canal.
type ChangeFeed struct {
	pool    *pgxpool.Pool
	channel string
	sink    ChangeSink
	log     zerolog.Logger
}

// NewChangeFeed construye el feed sobre ChangeChannel.
func NewChangeFeed(pool *pgxpool.Pool, sink ChangeSink, log zerolog.Logger) *ChangeFeed {
	return &ChangeFeed{
		pool:    pool,
		channel: ChangeChannel,
		sink:    sink,
		log:     log.With().Str("component", "change_feed").Str("channel", ChangeChannel).Logger(),
	}
}

// Run bloquea hasta que ctx se cancele, reconectando con backoff exponencial.
func (f *ChangeFeed) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		err := f.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			f.log.Info().Msg("feed de cambios detenido")
			return nil
		}
		wait := b.NextBackOff()
		f.log.Warn().Err(err).Dur("retry_in", wait).Msg("feed de cambios desconectado")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			f.log.Info().Msg("feed de cambios detenido")
			return nil
		case <-t.C:
		}
	}
}

func (f *ChangeFeed) listen(ctx context.Context, connected func()) error {
	pooled, err := f.pool.Acquire(ctx)
	if err != nil {
		return classify("acquire listen conn", err)
	}
	// La conexión queda en LISTEN: se saca del pool y se cierra al salir.
	conn := pooled.Hijack()
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return classify("listen", err)
	}
	connected()
	f.resync()
	f.log.Info().Msg("feed de cambios conectado")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return classify("wait notification", err)
		}
		ch, err := decodeChange(n.Payload)
		if err != nil {
			f.log.Warn().Err(err).Str("payload", n.Payload).Msg("notificación ignorada")
			continue
		}
		f.sink.ApplyChange(ch)
	}
}

func (f *ChangeFeed) resync() {
	for _, k := range []cache.Kind{cache.KindProducts, cache.KindBranches, cache.KindBranchStock, cache.KindMovements} {
		f.sink.Invalidate(k)
	}
}

// Filas tal como las serializa row_to_json.
type (
	notification struct {
		Table string          `json:"table"`
		Op    string          `json:"op"`
		Row   json.RawMessage `json:"row"`
	}
	productRow struct {
		ID          string    `json:"id"`
		Code        string    `json:"code"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Unit        string    `json:"unit"`
		Department  string    `json:"department"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}
	branchRow struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Code      string    `json:"code"`
		CreatedAt time.Time `json:"created_at"`
	}
	stockRow struct {
		ProductID string    `json:"product_id"`
		BranchID  string    `json:"branch_id"`
		Quantity  int64     `json:"quantity"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	movementRow struct {
		ID                  string    `json:"id"`
		RequestID           *string   `json:"request_id"`
		ProductID           string    `json:"product_id"`
		OriginBranchID      string    `json:"origin_branch_id"`
		DestinationBranchID *string   `json:"destination_branch_id"`
		Quantity            int64     `json:"quantity"`
		Type                string    `json:"type"`
		Notes               string    `json:"notes"`
		InvoiceNumber       string    `json:"invoice_number"`
		ProductName         string    `json:"product_name"`
		ProductCode         string    `json:"product_code"`
		ProductDepartment   string    `json:"product_department"`
		CreatedBy           string    `json:"created_by"`
		CreatedAt           time.Time `json:"created_at"`
	}
)

var errUnknownTable = errors.New("tabla desconocida")

// decodeChange traduce el payload del trigger a un cache.Change.
func decodeChange(payload string) (cache.Change, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return cache.Change{}, fmt.Errorf("decodificar notificación: %w", err)
	}
	ch := cache.Change{Type: cache.ChangeType(n.Op)}
	switch ch.Type {
	case cache.ChangeInsert, cache.ChangeUpdate, cache.ChangeDelete:
	default:
		return cache.Change{}, fmt.Errorf("operación %q desconocida", n.Op)
	}

	switch n.Table {
	case "products":
		var r productRow
		if err := json.Unmarshal(n.Row, &r); err != nil {
			return cache.Change{}, fmt.Errorf("decodificar producto: %w", err)
		}
		ch.Collection = cache.KindProducts
		ch.Product = &entity.Product{
			ID: r.ID, Code: r.Code, Name: r.Name, Description: r.Description, Unit: r.Unit,
			Department: entity.Department(r.Department), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		}
	case "branches":
		var r branchRow
		if err := json.Unmarshal(n.Row, &r); err != nil {
			return cache.Change{}, fmt.Errorf("decodificar sucursal: %w", err)
		}
		ch.Collection = cache.KindBranches
		ch.Branch = &entity.Branch{ID: r.ID, Name: r.Name, Code: r.Code, CreatedAt: r.CreatedAt}
	case "branch_stock":
		var r stockRow
		if err := json.Unmarshal(n.Row, &r); err != nil {
			return cache.Change{}, fmt.Errorf("decodificar stock: %w", err)
		}
		ch.Collection = cache.KindBranchStock
		ch.Stock = &entity.BranchStock{ProductID: r.ProductID, BranchID: r.BranchID, Quantity: r.Quantity, UpdatedAt: r.UpdatedAt}
	case "movements":
		var r movementRow
		if err := json.Unmarshal(n.Row, &r); err != nil {
			return cache.Change{}, fmt.Errorf("decodificar movimiento: %w", err)
		}
		ch.Collection = cache.KindMovements
		ch.Movement = &entity.Movement{
			ID:                  r.ID,
			RequestID:           deref(r.RequestID),
			ProductID:           r.ProductID,
			OriginBranchID:      r.OriginBranchID,
			DestinationBranchID: deref(r.DestinationBranchID),
			Quantity:            r.Quantity,
			Type:                entity.MovementType(r.Type),
			Notes:               r.Notes,
			InvoiceNumber:       r.InvoiceNumber,
			ProductName:         r.ProductName,
			ProductCode:         r.ProductCode,
			ProductDepartment:   entity.Department(r.ProductDepartment),
			CreatedBy:           r.CreatedBy,
			CreatedAt:           r.CreatedAt,
		}
	default:
		return cache.Change{}, fmt.Errorf("%w: %s", errUnknownTable, n.Table)
	}
	return ch, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
