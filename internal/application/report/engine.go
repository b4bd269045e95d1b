// Package report arma las vistas paginadas y filtradas del historial de movimientos.
package report

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockflow/internal/application/access"
	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
	"github.com/jhoicas/stockflow/pkg/retry"
)

// Placeholder valor de las columnas sin dato (factura, destino, notas, producto desconocido).
const Placeholder = "-"

const dateLayout = "2006-01-02"

// Filters filtros del reporte. Las fechas van en formato YYYY-MM-DD y se interpretan
// como inicio y fin de día en la zona configurada.
type Filters struct {
	Type         string
	BranchID     string
	Department   string
	From         string
	To           string
	Page         int
	PageSize     int
	DisableCache bool
}

// Config opciones del motor de consultas.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	Location        *time.Location
	Departments     entity.DepartmentSet
	Retry           retry.Policy
}

// Cache parte de la caché de entidades que usa el motor de consultas.
type Cache interface {
	Snapshot(ctx context.Context) (cache.View, error)
	Recent(ctx context.Context) ([]entity.Movement, error)
	GetPage(key cache.PageKey) (cache.Page, bool)
	PagesVersion() uint64
	SetPageAt(key cache.PageKey, page cache.Page, version uint64) bool
}

var _ Cache = (*cache.EntityCache)(nil)

// Engine motor de consultas de movimientos.
type Engine struct {
	movements repository.MovementRepository
	cache     Cache
	cfg       Config
	log       zerolog.Logger
}

// NewEngine construye el motor con valores por defecto 50/500 y UTC.
func NewEngine(movements repository.MovementRepository, c Cache, cfg Config, log zerolog.Logger) *Engine {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 500
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		movements: movements,
		cache:     c,
		cfg:       cfg,
		log:       log.With().Str("component", "report").Logger(),
	}
}

type query struct {
	filter   repository.MovementFilter
	key      cache.PageKey
	page     int
	pageSize int
	empty    bool
}

// QueryMovements devuelve una página del reporte ordenada por fecha descendente
// (desempate por id) con el total real de filas que cumplen los filtros.
// Para actores no admin el departamento queda fijado al suyo.
func (e *Engine) QueryMovements(ctx context.Context, actor *entity.Actor, f Filters) (dto.MovementReport, error) {
	if err := access.CheckPermission(actor, access.AnyRole...); err != nil {
		return dto.MovementReport{}, err
	}
	q, err := e.prepare(actor, f)
	if err != nil {
		return dto.MovementReport{}, err
	}
	if q.empty {
		return dto.MovementReport{
			Rows: []dto.MovementReportRow{},
			Page: dto.PageResponse{Page: q.page, PageSize: q.pageSize},
		}, nil
	}

	if !f.DisableCache {
		if page, ok := e.cache.GetPage(q.key); ok {
			return page, nil
		}
	}
	version := e.cache.PagesVersion()

	view, err := e.cache.Snapshot(ctx)
	if err != nil {
		return dto.MovementReport{}, err
	}
	var (
		list  []*entity.Movement
		total int
	)
	err = retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) (err error) {
		list, total, err = e.movements.Query(ctx, q.filter)
		return err
	})
	if err != nil {
		return dto.MovementReport{}, err
	}

	rows := make([]dto.MovementReportRow, 0, len(list))
	for _, m := range list {
		rows = append(rows, e.row(view, m))
	}
	out := dto.MovementReport{
		Rows: rows,
		Page: dto.PageResponse{
			Page:       q.page,
			PageSize:   q.pageSize,
			Total:      total,
			TotalPages: (total + q.pageSize - 1) / q.pageSize,
		},
	}
	if !f.DisableCache && !e.cache.SetPageAt(q.key, out, version) {
		e.log.Debug().Str("key", q.key.String()).Msg("página no cacheada: hubo escrituras durante la consulta")
	}
	return out, nil
}

// RecentMovements lista los movimientos recientes desde la caché, opcionalmente
// filtrados por tipo y limitados a limit filas (0 = todos los cacheados).
func (e *Engine) RecentMovements(ctx context.Context, actor *entity.Actor, typ string, limit int) ([]dto.MovementReportRow, error) {
	if err := access.CheckPermission(actor, access.AnyRole...); err != nil {
		return nil, err
	}
	var mt entity.MovementType
	if typ != "" {
		var ok bool
		if mt, ok = entity.ParseMovementType(typ); !ok {
			return nil, domain.NewValidationError("type", "debe ser inbound u outbound")
		}
	}
	if limit < 0 {
		return nil, domain.NewValidationError("limit", "no puede ser negativo")
	}
	view, err := e.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	list, err := e.cache.Recent(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]dto.MovementReportRow, 0, len(list))
	for i := range list {
		m := &list[i]
		if mt != "" && m.Type != mt {
			continue
		}
		if !access.Visible(actor, department(view, m)) {
			continue
		}
		rows = append(rows, e.row(view, m))
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	return rows, nil
}

func (e *Engine) prepare(actor *entity.Actor, f Filters) (query, error) {
	var q query

	if f.Type != "" {
		mt, ok := entity.ParseMovementType(f.Type)
		if !ok {
			return q, domain.NewValidationError("type", "debe ser inbound u outbound")
		}
		q.filter.Type = mt
	}

	q.page = f.Page
	switch {
	case q.page == 0:
		q.page = 1
	case q.page < 0:
		return q, domain.NewValidationError("page", "debe ser mayor o igual a 1")
	}
	q.pageSize = f.PageSize
	switch {
	case q.pageSize == 0:
		q.pageSize = e.cfg.DefaultPageSize
	case q.pageSize < 0:
		return q, domain.NewValidationError("page_size", "debe ser positivo")
	case q.pageSize > e.cfg.MaxPageSize:
		q.pageSize = e.cfg.MaxPageSize
	}
	// el desplazamiento (page-1)*page_size tiene que caber en un int
	if q.page-1 > math.MaxInt/q.pageSize {
		return q, domain.NewValidationError("page", "fuera de rango")
	}

	var requested entity.Department
	if f.Department != "" {
		d, ok := e.cfg.Departments.Parse(f.Department)
		if !ok {
			return q, domain.NewValidationError("department", "departamento desconocido")
		}
		requested = d
	}
	dept, ok := access.ScopeDepartment(actor, requested)
	if !ok {
		q.empty = true
		return q, nil
	}

	from, err := e.parseDate("from", f.From, false)
	if err != nil {
		return q, err
	}
	to, err := e.parseDate("to", f.To, true)
	if err != nil {
		return q, err
	}
	if from != nil && to != nil && from.After(*to) {
		return q, domain.NewValidationError("from", "no puede ser posterior a to")
	}

	q.filter.OriginBranchID = f.BranchID
	q.filter.Department = dept
	q.filter.From = from
	q.filter.To = to
	q.filter.Limit = q.pageSize
	q.filter.Offset = (q.page - 1) * q.pageSize
	q.key = cache.PageKey{
		Type:       string(q.filter.Type),
		BranchID:   f.BranchID,
		Department: string(dept),
		From:       f.From,
		To:         f.To,
		Page:       q.page,
		PageSize:   q.pageSize,
	}
	return q, nil
}

// parseDate devuelve el inicio del día o, con endOfDay, su último instante.
func (e *Engine) parseDate(field, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(dateLayout, v, e.cfg.Location)
	if err != nil {
		return nil, domain.NewValidationError(field, "formato esperado YYYY-MM-DD")
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &d, nil
}

func department(view cache.View, m *entity.Movement) entity.Department {
	if m.ProductDepartment != "" {
		return m.ProductDepartment
	}
	if p, ok := view.Product(m.ProductID); ok {
		return p.Department
	}
	return ""
}

func (e *Engine) row(view cache.View, m *entity.Movement) dto.MovementReportRow {
	r := dto.MovementReportRow{
		ID:                    m.ID,
		Date:                  m.CreatedAt.In(e.cfg.Location),
		InvoiceNumber:         orPlaceholder(m.InvoiceNumber),
		OriginBranchName:      Placeholder,
		OriginBranchCode:      Placeholder,
		DestinationBranchName: Placeholder,
		DestinationBranchCode: Placeholder,
		ProductCode:           Placeholder,
		ProductName:           Placeholder,
		ProductDepartment:     Placeholder,
		Quantity:              m.Quantity,
		Type:                  string(m.Type),
		Transfer:              m.IsTransfer(),
		Notes:                 orPlaceholder(m.Notes),
	}
	if b, ok := view.Branch(m.OriginBranchID); ok {
		r.OriginBranchName, r.OriginBranchCode = b.Name, b.Code
	}
	if m.DestinationBranchID != "" {
		if b, ok := view.Branch(m.DestinationBranchID); ok {
			r.DestinationBranchName, r.DestinationBranchCode = b.Name, b.Code
		}
	}

	// La copia del movimiento manda; el producto vivo sólo completa lo que falte.
	live, hasLive := view.Product(m.ProductID)
	r.ProductCode = firstNonEmpty(m.ProductCode, liveField(hasLive, live.Code))
	r.ProductName = firstNonEmpty(m.ProductName, liveField(hasLive, live.Name))
	r.ProductDepartment = firstNonEmpty(string(m.ProductDepartment), liveField(hasLive, string(live.Department)))
	return r
}

func liveField(ok bool, v string) string {
	if !ok {
		return ""
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return Placeholder
}

func orPlaceholder(v string) string {
	if v == "" {
		return Placeholder
	}
	return v
}

