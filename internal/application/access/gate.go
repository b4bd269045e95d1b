// Package access concentra las reglas de autorización por rol y departamento.
// No autentica: recibe el actor ya resuelto por la capa de transporte.
package access

import (
	"slices"

	"github.com/jhoicas/stockflow/internal/domain"
	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// Listas de roles por operación. Sin jerarquía: cada operación declara quién entra.
var (
	AnyRole     = []entity.Role{entity.RoleAdmin, entity.RoleManager, entity.RoleOperator}
	CatalogEdit = []entity.Role{entity.RoleAdmin, entity.RoleManager}
	AdminOnly   = []entity.Role{entity.RoleAdmin}
)

// CheckPermission devuelve ErrUnauthorized si no hay actor y ErrForbidden si su rol
// no está en allowed.
func CheckPermission(actor *entity.Actor, allowed ...entity.Role) error {
	if actor == nil || actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if !slices.Contains(allowed, actor.Role) {
		return domain.ErrForbidden
	}
	return nil
}

// CheckDepartment exige que un actor no admin sólo opere sobre su propio departamento.
func CheckDepartment(actor *entity.Actor, dept entity.Department) error {
	if actor == nil {
		return domain.ErrUnauthorized
	}
	if actor.IsAdmin() || actor.Department == dept {
		return nil
	}
	return domain.ErrForbidden
}

// ScopeDepartment resuelve el filtro de departamento para lecturas.
// El admin ve lo pedido (vacío = todos). El resto queda fijado a su departamento;
// si pidió otro, ok=false y el llamador debe devolver un resultado vacío.
func ScopeDepartment(actor *entity.Actor, requested entity.Department) (dept entity.Department, ok bool) {
	if actor.IsAdmin() {
		return requested, true
	}
	if actor == nil {
		return "", false
	}
	if requested != "" && requested != actor.Department {
		return actor.Department, false
	}
	return actor.Department, true
}

// Visible indica si un registro del departamento dept es visible para el actor.
func Visible(actor *entity.Actor, dept entity.Department) bool {
	return actor.IsAdmin() || (actor != nil && actor.Department == dept)
}
