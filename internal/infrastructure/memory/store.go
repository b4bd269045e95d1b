// Package memory implementa los puertos de persistencia en memoria.
// Se usa en tests y en modo local (STORE_DRIVER=memory).
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// Store estado en memoria de las cuatro colecciones.
type Store struct {
	mu        sync.RWMutex
	products  map[string]entity.Product
	branches  map[string]entity.Branch
	stock     map[entity.StockKey]entity.BranchStock
	movements map[string]entity.Movement
	requests  map[string]string // request_id -> movement id

	txMu   sync.Mutex
	atomic bool

	faultMu sync.Mutex
	faults  map[string][]error
	calls   map[string]int
}

// Option configura el Store.
type Option func(*Store)

// WithoutTransactions modela un backend remoto sin transacciones multi-sentencia:
// el TxRunner ejecuta cada paso directamente y no revierte nada ante un fallo.
func WithoutTransactions() Option {
	return func(s *Store) { s.atomic = false }
}

// New construye un Store vacío. Por defecto el TxRunner es atómico (snapshot + restore).
func New(opts ...Option) *Store {
	s := &Store{
		products:  make(map[string]entity.Product),
		branches:  make(map[string]entity.Branch),
		stock:     make(map[entity.StockKey]entity.BranchStock),
		movements: make(map[string]entity.Movement),
		requests:  make(map[string]string),
		atomic:    true,
		faults:    make(map[string][]error),
		calls:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Operaciones con nombre para inyección de fallas y conteo de llamadas.
const (
	OpProductsList    = "products.list"
	OpBranchesList    = "branches.list"
	OpStockList       = "stock.list"
	OpStockGet        = "stock.get"
	OpStockUpsert     = "stock.upsert"
	OpStockAdjust     = "stock.adjust"
	OpStockDelete     = "stock.delete"
	OpMovementsCreate = "movements.create"
	OpMovementsDelete = "movements.delete"
	OpMovementsRecent = "movements.recent"
	OpMovementsQuery  = "movements.query"
)

// InjectFault encola err para la próxima llamada a op. Varias fallas se consumen en orden.
func (s *Store) InjectFault(op string, errs ...error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

// Calls cantidad de veces que se invocó op.
func (s *Store) Calls(op string) int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.calls[op]
}

func (s *Store) hit(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.calls[op]++
	q := s.faults[op]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	s.faults[op] = q[1:]
	return err
}

// Ping siempre disponible salvo falla inyectada.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.hit("ping")
}

// Products repositorio de productos.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Branches repositorio de sucursales.
func (s *Store) Branches() *BranchRepo { return &BranchRepo{s: s} }

// Stock repositorio de stock por sucursal.
func (s *Store) Stock() *BranchStockRepo { return &BranchStockRepo{s: s} }

// Movements repositorio de movimientos.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

// TxRunner runner de unidades de trabajo sobre este Store.
func (s *Store) TxRunner() *TxRunner { return &TxRunner{s: s} }
