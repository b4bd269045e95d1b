package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
	"github.com/jhoicas/stockflow/pkg/retry"
)

// Kind identifica una de las colecciones en caché.
type Kind string

// Colecciones cacheadas.
const (
	KindProducts    Kind = "products"
	KindBranches    Kind = "branches"
	KindBranchStock Kind = "branch_stock"
	KindMovements   Kind = "movements"
)

// Sources repositorios de donde se cargan las colecciones completas.
type Sources struct {
	Products  repository.ProductRepository
	Branches  repository.BranchRepository
	Stock     repository.BranchStockRepository
	Movements repository.MovementRepository
}

// Options parámetros de la caché.
type Options struct {
	RecentMovements int           // tamaño de la lista de movimientos recientes
	LoadTimeout     time.Duration // tiempo máximo de una carga compartida
	Retry           retry.Policy
}

// snapshot es una vista inmutable de una colección. Un puntero nil significa "no cargada".
type snapshot[K comparable, V any] struct {
	gen atomic.Uint64
	ptr atomic.Pointer[map[K]V]
}

func (s *snapshot[K, V]) load() (map[K]V, bool) {
	p := s.ptr.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// EntityCache caché de lectura de productos, sucursales, stock por sucursal y movimientos
// recientes, más la caché de páginas del reporte de movimientos.
//
// Los lectores nunca toman locks: cada colección se reemplaza completa con un puntero
// atómico. Las escrituras (cargas, invalidaciones, parches del feed) se serializan con writeMu.
type EntityCache struct {
	src  Sources
	opts Options
	log  zerolog.Logger

	writeMu  sync.Mutex
	flight   singleflight.Group
	products snapshot[string, entity.Product]
	branches snapshot[string, entity.Branch]
	stock    snapshot[entity.StockKey, entity.BranchStock]
	recent   atomic.Pointer[[]entity.Movement]
	recentGn atomic.Uint64

	pagesMu  sync.RWMutex
	pages    map[PageKey]Page
	pagesVer uint64
}

// New construye una caché vacía (todas las colecciones sin cargar).
func New(src Sources, opts Options, log zerolog.Logger) *EntityCache {
	if opts.RecentMovements <= 0 {
		opts.RecentMovements = 100
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 15 * time.Second
	}
	return &EntityCache{
		src:   src,
		opts:  opts,
		log:   log.With().Str("component", "entity_cache").Logger(),
		pages: make(map[PageKey]Page),
	}
}

// EnsureLoaded carga productos, sucursales y stock si alguno no está cargado.
// Idempotente; llamadas concurrentes comparten una única consulta por colección.
func (c *EntityCache) EnsureLoaded(ctx context.Context) error {
	_, err := c.Snapshot(ctx)
	return err
}

// EnsureMovements carga la lista de movimientos recientes si no está cargada.
func (c *EntityCache) EnsureMovements(ctx context.Context) error {
	_, err := c.ensure(ctx, KindMovements)
	return err
}

// Loaded indica si la colección está poblada (aunque sea vacía).
func (c *EntityCache) Loaded(kind Kind) bool {
	return c.current(kind) != nil
}

// current devuelve el puntero instalado de la colección o nil si no está cargada.
func (c *EntityCache) current(kind Kind) any {
	switch kind {
	case KindProducts:
		if p := c.products.ptr.Load(); p != nil {
			return p
		}
	case KindBranches:
		if p := c.branches.ptr.Load(); p != nil {
			return p
		}
	case KindBranchStock:
		if p := c.stock.ptr.Load(); p != nil {
			return p
		}
	case KindMovements:
		if p := c.recent.Load(); p != nil {
			return p
		}
	}
	return nil
}

// ensure devuelve la colección cargada: la que ya estaba o la que instaló la carga.
// Cargas concurrentes de la misma colección se colapsan en una sola consulta, que no
// se cancela si el primer llamador abandona; cada llamador espera hasta su propio ctx.
func (c *EntityCache) ensure(ctx context.Context, kind Kind) (any, error) {
	if v := c.current(kind); v != nil {
		return v, nil
	}
	ch := c.flight.DoChan(string(kind), func() (any, error) {
		if v := c.current(kind); v != nil {
			return v, nil
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LoadTimeout)
		defer cancel()
		return c.load(lctx, kind)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// maxLoadRaces limita cuántas veces se repite una carga que fue invalidada en vuelo.
const maxLoadRaces = 3

func (c *EntityCache) load(ctx context.Context, kind Kind) (any, error) {
	for attempt := 1; ; attempt++ {
		gen := c.generation(kind)
		v, err := c.fetch(ctx, kind)
		if err != nil {
			c.log.Warn().Err(err).Str("kind", string(kind)).Msg("carga de caché fallida")
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		c.writeMu.Lock()
		// Si hubo invalidación o parche durante la consulta, el resultado puede estar viejo.
		if c.generation(kind) != gen && attempt < maxLoadRaces {
			c.writeMu.Unlock()
			continue
		}
		c.install(kind, v)
		c.bump(kind)
		c.writeMu.Unlock()
		c.log.Debug().Str("kind", string(kind)).Int("attempt", attempt).Msg("colección cargada")
		return v, nil
	}
}

// install reemplaza la colección; se llama con writeMu tomado.
func (c *EntityCache) install(kind Kind, v any) {
	switch kind {
	case KindProducts:
		c.products.ptr.Store(v.(*map[string]entity.Product))
	case KindBranches:
		c.branches.ptr.Store(v.(*map[string]entity.Branch))
	case KindBranchStock:
		c.stock.ptr.Store(v.(*map[entity.StockKey]entity.BranchStock))
	case KindMovements:
		c.recent.Store(v.(*[]entity.Movement))
	}
}

// fetch consulta la colección completa y devuelve el puntero listo para instalar.
func (c *EntityCache) fetch(ctx context.Context, kind Kind) (any, error) {
	switch kind {
	case KindProducts:
		var list []*entity.Product
		err := retry.Do(ctx, c.opts.Retry, func(ctx context.Context) (err error) {
			list, err = c.src.Products.List(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		m := make(map[string]entity.Product, len(list))
		for _, p := range list {
			m[p.ID] = *p
		}
		return &m, nil
	case KindBranches:
		var list []*entity.Branch
		err := retry.Do(ctx, c.opts.Retry, func(ctx context.Context) (err error) {
			list, err = c.src.Branches.List(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		m := make(map[string]entity.Branch, len(list))
		for _, b := range list {
			m[b.ID] = *b
		}
		return &m, nil
	case KindBranchStock:
		var list []*entity.BranchStock
		err := retry.Do(ctx, c.opts.Retry, func(ctx context.Context) (err error) {
			list, err = c.src.Stock.List(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		m := make(map[entity.StockKey]entity.BranchStock, len(list))
		for _, s := range list {
			m[s.Key()] = *s
		}
		return &m, nil
	case KindMovements:
		var list []*entity.Movement
		err := retry.Do(ctx, c.opts.Retry, func(ctx context.Context) (err error) {
			list, err = c.src.Movements.ListRecent(ctx, c.opts.RecentMovements)
			return err
		})
		if err != nil {
			return nil, err
		}
		out := make([]entity.Movement, 0, len(list))
		for _, m := range list {
			out = append(out, *m)
		}
		sortMovements(out)
		return &out, nil
	}
	return nil, fmt.Errorf("colección desconocida %q", kind)
}

func (c *EntityCache) generation(kind Kind) uint64 {
	switch kind {
	case KindProducts:
		return c.products.gen.Load()
	case KindBranches:
		return c.branches.gen.Load()
	case KindBranchStock:
		return c.stock.gen.Load()
	case KindMovements:
		return c.recentGn.Load()
	}
	return 0
}

func (c *EntityCache) bump(kind Kind) {
	switch kind {
	case KindProducts:
		c.products.gen.Add(1)
	case KindBranches:
		c.branches.gen.Add(1)
	case KindBranchStock:
		c.stock.gen.Add(1)
	case KindMovements:
		c.recentGn.Add(1)
	}
}

// Invalidate vacía exactamente la colección indicada; la próxima carga consulta el almacenamiento.
func (c *EntityCache) Invalidate(kind Kind) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	switch kind {
	case KindProducts:
		c.products.ptr.Store(nil)
	case KindBranches:
		c.branches.ptr.Store(nil)
	case KindBranchStock:
		c.stock.ptr.Store(nil)
	case KindMovements:
		c.recent.Store(nil)
	}
	c.bump(kind)
	c.log.Debug().Str("kind", string(kind)).Msg("colección invalidada")
}

// Product devuelve el producto cacheado. No consulta el almacenamiento.
func (c *EntityCache) Product(id string) (entity.Product, bool) {
	m, ok := c.products.load()
	if !ok {
		return entity.Product{}, false
	}
	p, ok := m[id]
	return p, ok
}

// Branch devuelve la sucursal cacheada. No consulta el almacenamiento.
func (c *EntityCache) Branch(id string) (entity.Branch, bool) {
	m, ok := c.branches.load()
	if !ok {
		return entity.Branch{}, false
	}
	b, ok := m[id]
	return b, ok
}

// Stock devuelve la fila de stock cacheada; false si no hay fila o no está cargada.
func (c *EntityCache) Stock(productID, branchID string) (entity.BranchStock, bool) {
	m, ok := c.stock.load()
	if !ok {
		return entity.BranchStock{}, false
	}
	s, ok := m[entity.StockKey{ProductID: productID, BranchID: branchID}]
	return s, ok
}

// Products lista los productos ordenados por código; false si no está cargada.
func (c *EntityCache) Products() ([]entity.Product, bool) {
	m, ok := c.products.load()
	if !ok {
		return nil, false
	}
	return sortedProducts(m), true
}

// Branches lista las sucursales ordenadas por nombre; false si no está cargada.
func (c *EntityCache) Branches() ([]entity.Branch, bool) {
	m, ok := c.branches.load()
	if !ok {
		return nil, false
	}
	return sortedBranches(m), true
}

// BranchStocks lista las filas de stock; false si no está cargada.
func (c *EntityCache) BranchStocks() ([]entity.BranchStock, bool) {
	m, ok := c.stock.load()
	if !ok {
		return nil, false
	}
	return sortedStock(m), true
}

// RecentMovements devuelve una copia de la lista de movimientos recientes (más nuevo primero).
func (c *EntityCache) RecentMovements() ([]entity.Movement, bool) {
	p := c.recent.Load()
	if p == nil {
		return nil, false
	}
	out := make([]entity.Movement, len(*p))
	copy(out, *p)
	return out, true
}

// sortMovements orden del reporte: created_at DESC, id DESC.
func sortMovements(list []entity.Movement) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}
