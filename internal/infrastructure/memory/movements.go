package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo movimientos en memoria. request_id es único cuando viene informado.
type MovementRepo struct{ s *Store }

func (r *MovementRepo) Create(_ context.Context, m *entity.Movement) error {
	if err := r.s.hit(OpMovementsCreate); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.movements[m.ID]; ok {
		return domain.ErrDuplicate
	}
	if m.RequestID != "" {
		if _, ok := r.s.requests[m.RequestID]; ok {
			return domain.ErrDuplicate
		}
		r.s.requests[m.RequestID] = m.ID
	}
	r.s.movements[m.ID] = *m
	return nil
}

func (r *MovementRepo) GetByID(_ context.Context, id string) (*entity.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.movements[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MovementRepo) GetByRequestID(_ context.Context, requestID string) (*entity.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.requests[requestID]
	if !ok {
		return nil, nil
	}
	m, ok := r.s.movements[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MovementRepo) Delete(_ context.Context, id string) error {
	if err := r.s.hit(OpMovementsDelete); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.movements[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.s.movements, id)
	if m.RequestID != "" {
		delete(r.s.requests, m.RequestID)
	}
	return nil
}

func (r *MovementRepo) ListRecent(_ context.Context, limit int) ([]*entity.Movement, error) {
	if err := r.s.hit(OpMovementsRecent); err != nil {
		return nil, err
	}
	list := r.sorted(func(*entity.Movement) bool { return true })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *MovementRepo) Query(_ context.Context, f repository.MovementFilter) ([]*entity.Movement, int, error) {
	if err := r.s.hit(OpMovementsQuery); err != nil {
		return nil, 0, err
	}
	list := r.sorted(func(m *entity.Movement) bool {
		if f.Type != "" && m.Type != f.Type {
			return false
		}
		if f.OriginBranchID != "" && m.OriginBranchID != f.OriginBranchID {
			return false
		}
		if f.Department != "" && m.ProductDepartment != f.Department {
			return false
		}
		if f.From != nil && m.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && m.CreatedAt.After(*f.To) {
			return false
		}
		return true
	})
	if f.Offset < 0 || f.Limit < 0 {
		return nil, 0, domain.NewValidationError("offset", "paginación negativa")
	}
	total := len(list)
	if f.Offset >= total {
		return []*entity.Movement{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return list[f.Offset:end], total, nil
}

// sorted devuelve copias filtradas en orden created_at DESC, id DESC.
func (r *MovementRepo) sorted(keep func(*entity.Movement) bool) []*entity.Movement {
	r.s.mu.RLock()
	list := make([]*entity.Movement, 0, len(r.s.movements))
	for _, m := range r.s.movements {
		m := m
		if keep(&m) {
			list = append(list, &m)
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list
}
