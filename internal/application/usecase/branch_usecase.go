package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockflow/internal/application/access"
	"github.com/jhoicas/stockflow/internal/application/cache"
	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/internal/domain/repository"
)

// BranchUseCase casos de uso para sucursales.
type BranchUseCase struct {
	repo  repository.BranchRepository
	cache Cache
	log   zerolog.Logger
	now   func() time.Time
}

// NewBranchUseCase construye el caso de uso.
func NewBranchUseCase(repo repository.BranchRepository, c Cache, log zerolog.Logger) *BranchUseCase {
	return &BranchUseCase{repo: repo, cache: c, log: log.With().Str("component", "branches").Logger(), now: time.Now}
}

// List lista las sucursales. Todas son visibles para cualquier rol.
func (uc *BranchUseCase) List(ctx context.Context, actor *entity.Actor) ([]dto.BranchResponse, error) {
	if err := access.CheckPermission(actor, access.AnyRole...); err != nil {
		return nil, err
	}
	view, err := uc.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	list := view.Branches()
	out := make([]dto.BranchResponse, 0, len(list))
	for i := range list {
		out = append(out, toBranchResponse(&list[i]))
	}
	return out, nil
}

// Create crea una sucursal. El código se guarda en mayúsculas y es único.
func (uc *BranchUseCase) Create(ctx context.Context, actor *entity.Actor, in dto.CreateBranchRequest) (*dto.BranchResponse, error) {
	if err := access.CheckPermission(actor, access.CatalogEdit...); err != nil {
		return nil, err
	}
	b := &entity.Branch{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Code:      strings.ToUpper(strings.TrimSpace(in.Code)),
		CreatedAt: uc.now().UTC(),
	}
	switch {
	case b.Name == "":
		return nil, domain.NewValidationError("name", "es obligatorio")
	case utf8.RuneCountInString(b.Name) > 200:
		return nil, domain.NewValidationError("name", "máximo 200 caracteres")
	case b.Code == "":
		return nil, domain.NewValidationError("code", "es obligatorio")
	case utf8.RuneCountInString(b.Code) > 20:
		return nil, domain.NewValidationError("code", "máximo 20 caracteres")
	}
	if err := uc.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	uc.cache.Invalidate(cache.KindBranches)
	uc.cache.InvalidatePages()
	uc.log.Info().Str("branch_id", b.ID).Str("code", b.Code).Str("actor_id", actor.ID).Msg("sucursal creada")
	resp := toBranchResponse(b)
	return &resp, nil
}

// Delete elimina una sucursal. No limpia stock ni movimientos que la referencian:
// los reportes muestran el marcador en su lugar.
func (uc *BranchUseCase) Delete(ctx context.Context, actor *entity.Actor, id string) error {
	if err := access.CheckPermission(actor, access.CatalogEdit...); err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.cache.Invalidate(cache.KindBranches)
	uc.cache.InvalidatePages()
	uc.log.Info().Str("branch_id", id).Str("actor_id", actor.ID).Msg("sucursal eliminada")
	return nil
}

func toBranchResponse(b *entity.Branch) dto.BranchResponse {
	return dto.BranchResponse{ID: b.ID, Name: b.Name, Code: b.Code, CreatedAt: b.CreatedAt}
}
