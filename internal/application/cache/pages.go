package cache

import (
	"fmt"

	"github.com/jhoicas/stockflow/internal/application/dto"
)

// PageKey clave determinista de una página del reporte de movimientos.
// Además de tipo, sucursal, departamento y página incluye el rango de fechas y el
// tamaño de página, que también cambian el contenido.
type PageKey struct {
	Type       string
	BranchID   string
	Department string
	From       string
	To         string
	Page       int
	PageSize   int
}

func (k PageKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d", k.Type, k.BranchID, k.Department, k.From, k.To, k.Page, k.PageSize)
}

// Page página materializada del reporte.
type Page = dto.MovementReport

// GetPage devuelve la página cacheada para la clave, si existe. Sin expiración automática.
func (c *EntityCache) GetPage(key PageKey) (Page, bool) {
	c.pagesMu.RLock()
	defer c.pagesMu.RUnlock()
	p, ok := c.pages[key]
	if !ok {
		return Page{}, false
	}
	return clonePage(p), true
}

// SetPage guarda una página del reporte.
func (c *EntityCache) SetPage(key PageKey, page Page) {
	c.pagesMu.Lock()
	defer c.pagesMu.Unlock()
	c.pages[key] = clonePage(page)
}

// PagesVersion versión actual de la caché de páginas; cambia en cada InvalidatePages.
func (c *EntityCache) PagesVersion() uint64 {
	c.pagesMu.RLock()
	defer c.pagesMu.RUnlock()
	return c.pagesVer
}

// SetPageAt guarda la página sólo si no hubo invalidación desde version.
// Evita reinstalar una página calculada antes de una escritura concurrente.
func (c *EntityCache) SetPageAt(key PageKey, page Page, version uint64) bool {
	c.pagesMu.Lock()
	defer c.pagesMu.Unlock()
	if c.pagesVer != version {
		return false
	}
	c.pages[key] = clonePage(page)
	return true
}

// InvalidatePages descarta todas las páginas. Se llama ante cualquier escritura de
// movimientos o stock: la invalidación por clave no es confiable.
func (c *EntityCache) InvalidatePages() {
	c.pagesMu.Lock()
	defer c.pagesMu.Unlock()
	c.pagesVer++
	if len(c.pages) == 0 {
		return
	}
	c.pages = make(map[PageKey]Page)
}

// PageCount cantidad de páginas cacheadas.
func (c *EntityCache) PageCount() int {
	c.pagesMu.RLock()
	defer c.pagesMu.RUnlock()
	return len(c.pages)
}

func clonePage(p Page) Page {
	rows := make([]dto.MovementReportRow, len(p.Rows))
	copy(rows, p.Rows)
	p.Rows = rows
	return p
}
