package cache

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// View productos, sucursales y stock tal como estaban cargados al pedirlos.
// Es inmutable: invalidaciones y parches posteriores instalan colecciones nuevas
// y no la afectan.
type View struct {
	products map[string]entity.Product
	branches map[string]entity.Branch
	stock    map[entity.StockKey]entity.BranchStock
}

// Snapshot devuelve las colecciones del catálogo cargadas, cargando las que falten.
// Nunca devuelve una colección sin cargar como vacía: o hay datos o hay error.
func (c *EntityCache) Snapshot(ctx context.Context) (View, error) {
	p, okP := c.products.load()
	b, okB := c.branches.load()
	s, okS := c.stock.load()
	if okP && okB && okS {
		return View{products: p, branches: b, stock: s}, nil
	}

	var v View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		got, err := c.ensure(gctx, KindProducts)
		if err != nil {
			return err
		}
		v.products = *got.(*map[string]entity.Product)
		return nil
	})
	g.Go(func() error {
		got, err := c.ensure(gctx, KindBranches)
		if err != nil {
			return err
		}
		v.branches = *got.(*map[string]entity.Branch)
		return nil
	})
	g.Go(func() error {
		got, err := c.ensure(gctx, KindBranchStock)
		if err != nil {
			return err
		}
		v.stock = *got.(*map[entity.StockKey]entity.BranchStock)
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}
	return v, nil
}

// Recent devuelve una copia de los movimientos recientes (más nuevo primero),
// cargándolos si hace falta.
func (c *EntityCache) Recent(ctx context.Context) ([]entity.Movement, error) {
	got, err := c.ensure(ctx, KindMovements)
	if err != nil {
		return nil, err
	}
	list := *got.(*[]entity.Movement)
	out := make([]entity.Movement, len(list))
	copy(out, list)
	return out, nil
}

// Product producto de la vista.
func (v View) Product(id string) (entity.Product, bool) {
	p, ok := v.products[id]
	return p, ok
}

// Branch sucursal de la vista.
func (v View) Branch(id string) (entity.Branch, bool) {
	b, ok := v.branches[id]
	return b, ok
}

// Stock fila de stock de la vista; false si no hay fila.
func (v View) Stock(productID, branchID string) (entity.BranchStock, bool) {
	s, ok := v.stock[entity.StockKey{ProductID: productID, BranchID: branchID}]
	return s, ok
}

// Products productos ordenados por código.
func (v View) Products() []entity.Product { return sortedProducts(v.products) }

// Branches sucursales ordenadas por nombre.
func (v View) Branches() []entity.Branch { return sortedBranches(v.branches) }

// BranchStocks filas de stock ordenadas por sucursal y producto.
func (v View) BranchStocks() []entity.BranchStock { return sortedStock(v.stock) }

func sortedProducts(m map[string]entity.Product) []entity.Product {
	out := make([]entity.Product, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedBranches(m map[string]entity.Branch) []entity.Branch {
	out := make([]entity.Branch, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedStock(m map[entity.StockKey]entity.BranchStock) []entity.BranchStock {
	out := make([]entity.BranchStock, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BranchID != out[j].BranchID {
			return out[i].BranchID < out[j].BranchID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
