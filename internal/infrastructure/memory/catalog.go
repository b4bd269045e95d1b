package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var (
	_ repository.ProductRepository = (*ProductRepo)(nil)
	_ repository.BranchRepository  = (*BranchRepo)(nil)
)

// ProductRepo productos en memoria. (department, code) es único.
type ProductRepo struct{ s *Store }

func (r *ProductRepo) Create(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; ok {
		return domain.ErrDuplicate
	}
	if r.codeTakenLocked(p) {
		return domain.ErrDuplicate
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) codeTakenLocked(p *entity.Product) bool {
	for _, cur := range r.s.products {
		if cur.ID != p.ID && cur.Department == p.Department && cur.Code == p.Code {
			return true
		}
	}
	return false
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProductRepo) Update(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	if r.codeTakenLocked(p) {
		return domain.ErrDuplicate
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) List(_ context.Context) ([]*entity.Product, error) {
	if err := r.s.hit(OpProductsList); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := make([]*entity.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		p := p
		list = append(list, &p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// Delete no toca movimientos: conservan la copia del producto.
func (r *ProductRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

// BranchRepo sucursales en memoria.
type BranchRepo struct{ s *Store }

func (r *BranchRepo) Create(_ context.Context, b *entity.Branch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.branches[b.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, cur := range r.s.branches {
		if cur.Code == b.Code {
			return domain.ErrDuplicate
		}
	}
	r.s.branches[b.ID] = *b
	return nil
}

func (r *BranchRepo) GetByID(_ context.Context, id string) (*entity.Branch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.branches[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BranchRepo) List(_ context.Context) ([]*entity.Branch, error) {
	if err := r.s.hit(OpBranchesList); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := make([]*entity.Branch, 0, len(r.s.branches))
	for _, b := range r.s.branches {
		b := b
		list = append(list, &b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// Delete no limpia stock ni movimientos que referencian la sucursal.
func (r *BranchRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.branches[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.branches, id)
	return nil
}
