package cache

import (
	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// ChangeType tipo de cambio emitido por el feed en tiempo real.
type ChangeType string

// Tipos de cambio.
const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change evento del feed: colección, tipo y la fila afectada (para delete, la fila vieja).
// Sólo el campo que corresponde a Collection viene poblado.
type Change struct {
	Collection Kind
	Type       ChangeType
	Product    *entity.Product
	Branch     *entity.Branch
	Stock      *entity.BranchStock
	Movement   *entity.Movement
}

// ApplyChange aplica un parche puntual sin recargar la colección.
// La colección se copia, se modifica y se reemplaza de forma atómica: los lectores ven
// la versión anterior o la nueva, nunca un estado intermedio. Si la colección no está
// cargada el parche se descarta (la próxima carga traerá el estado actual).
// Cambios de stock o movimientos descartan además las páginas del reporte.
func (c *EntityCache) ApplyChange(ch Change) {
	c.writeMu.Lock()
	applied := c.applyLocked(ch)
	c.bump(ch.Collection)
	c.writeMu.Unlock()

	if ch.Collection == KindMovements || ch.Collection == KindBranchStock {
		c.InvalidatePages()
	}
	c.log.Debug().
		Str("kind", string(ch.Collection)).
		Str("change", string(ch.Type)).
		Bool("applied", applied).
		Msg("parche de caché")
}

func (c *EntityCache) applyLocked(ch Change) bool {
	switch ch.Collection {
	case KindProducts:
		if ch.Product == nil {
			return false
		}
		return patchMap(&c.products, ch.Type, ch.Product.ID, *ch.Product)
	case KindBranches:
		if ch.Branch == nil {
			return false
		}
		return patchMap(&c.branches, ch.Type, ch.Branch.ID, *ch.Branch)
	case KindBranchStock:
		if ch.Stock == nil {
			return false
		}
		return patchMap(&c.stock, ch.Type, ch.Stock.Key(), *ch.Stock)
	case KindMovements:
		if ch.Movement == nil {
			return false
		}
		return c.patchRecent(ch.Type, *ch.Movement)
	}
	c.log.Warn().Str("kind", string(ch.Collection)).Msg("parche para colección desconocida")
	return false
}

func patchMap[K comparable, V any](s *snapshot[K, V], t ChangeType, key K, val V) bool {
	cur, ok := s.load()
	if !ok {
		return false
	}
	next := make(map[K]V, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	switch t {
	case ChangeInsert, ChangeUpdate:
		next[key] = val
	case ChangeDelete:
		delete(next, key)
	default:
		return false
	}
	s.ptr.Store(&next)
	return true
}

func (c *EntityCache) patchRecent(t ChangeType, m entity.Movement) bool {
	p := c.recent.Load()
	if p == nil {
		return false
	}
	next := make([]entity.Movement, 0, len(*p)+1)
	for _, cur := range *p {
		if cur.ID != m.ID {
			next = append(next, cur)
		}
	}
	switch t {
	case ChangeInsert, ChangeUpdate:
		next = append(next, m)
	case ChangeDelete:
	default:
		return false
	}
	sortMovements(next)
	if len(next) > c.opts.RecentMovements {
		next = next[:c.opts.RecentMovements]
	}
	c.recent.Store(&next)
	return true
}
