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

// ProductUseCase casos de uso CRUD para productos. El stock se maneja vía movimientos.
type ProductUseCase struct {
	repo  repository.ProductRepository
	cache Cache
	depts entity.DepartmentSet
	log   zerolog.Logger
	now   func() time.Time
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository, c Cache, depts entity.DepartmentSet, log zerolog.Logger) *ProductUseCase {
	return &ProductUseCase{
		repo:  repo,
		cache: c,
		depts: depts,
		log:   log.With().Str("component", "products").Logger(),
		now:   time.Now,
	}
}

// List lista los productos visibles para el actor (no admin: sólo su departamento).
func (uc *ProductUseCase) List(ctx context.Context, actor *entity.Actor) ([]dto.ProductResponse, error) {
	if err := access.CheckPermission(actor, access.AnyRole...); err != nil {
		return nil, err
	}
	view, err := uc.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	list := view.Products()
	out := make([]dto.ProductResponse, 0, len(list))
	for i := range list {
		if access.Visible(actor, list[i].Department) {
			out = append(out, toProductResponse(&list[i]))
		}
	}
	return out, nil
}

// Create crea un producto. Un manager sólo crea en su propio departamento.
func (uc *ProductUseCase) Create(ctx context.Context, actor *entity.Actor, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if err := access.CheckPermission(actor, access.CatalogEdit...); err != nil {
		return nil, err
	}
	dept, err := uc.department(in.Department)
	if err != nil {
		return nil, err
	}
	now := uc.now().UTC()
	p := &entity.Product{
		ID:          uuid.NewString(),
		Code:        strings.TrimSpace(in.Code),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Unit:        strings.ToUpper(strings.TrimSpace(in.Unit)),
		Department:  dept,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := access.CheckDepartment(actor, dept); err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	uc.cache.Invalidate(cache.KindProducts)
	uc.cache.InvalidatePages()
	uc.log.Info().Str("product_id", p.ID).Str("department", string(dept)).Str("actor_id", actor.ID).Msg("producto creado")
	resp := toProductResponse(p)
	return &resp, nil
}

// Update actualiza un producto. Mover un producto a otro departamento exige admin.
func (uc *ProductUseCase) Update(ctx context.Context, actor *entity.Actor, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	if err := access.CheckPermission(actor, access.CatalogEdit...); err != nil {
		return nil, err
	}
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	if err := access.CheckDepartment(actor, p.Department); err != nil {
		return nil, err
	}
	if in.Code != nil {
		p.Code = strings.TrimSpace(*in.Code)
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Unit != nil {
		p.Unit = strings.ToUpper(strings.TrimSpace(*in.Unit))
	}
	if in.Department != nil {
		dept, err := uc.department(*in.Department)
		if err != nil {
			return nil, err
		}
		if dept != p.Department {
			if err := access.CheckPermission(actor, access.AdminOnly...); err != nil {
				return nil, err
			}
			p.Department = dept
		}
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	uc.cache.Invalidate(cache.KindProducts)
	uc.cache.InvalidatePages()
	resp := toProductResponse(p)
	return &resp, nil
}

// Delete elimina un producto. Los movimientos históricos conservan su copia.
func (uc *ProductUseCase) Delete(ctx context.Context, actor *entity.Actor, id string) error {
	if err := access.CheckPermission(actor, access.CatalogEdit...); err != nil {
		return err
	}
	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.ErrNotFound
	}
	if err := access.CheckDepartment(actor, p.Department); err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.cache.Invalidate(cache.KindProducts)
	uc.cache.InvalidatePages()
	uc.log.Info().Str("product_id", id).Str("actor_id", actor.ID).Msg("producto eliminado")
	return nil
}

func (uc *ProductUseCase) department(v string) (entity.Department, error) {
	if strings.TrimSpace(v) == "" {
		return "", domain.NewValidationError("department", "es obligatorio")
	}
	d, ok := uc.depts.Parse(v)
	if !ok {
		return "", domain.NewValidationError("department", "departamento desconocido")
	}
	return d, nil
}

func validateProduct(p *entity.Product) error {
	switch {
	case p.Code == "":
		return domain.NewValidationError("code", "es obligatorio")
	case utf8.RuneCountInString(p.Code) > 50:
		return domain.NewValidationError("code", "máximo 50 caracteres")
	case p.Name == "":
		return domain.NewValidationError("name", "es obligatorio")
	case utf8.RuneCountInString(p.Name) > 200:
		return domain.NewValidationError("name", "máximo 200 caracteres")
	case p.Unit == "":
		return domain.NewValidationError("unit", "es obligatorio")
	case utf8.RuneCountInString(p.Unit) > 10:
		return domain.NewValidationError("unit", "máximo 10 caracteres")
	}
	return nil
}

func toProductResponse(p *entity.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Unit:        p.Unit,
		Department:  string(p.Department),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
