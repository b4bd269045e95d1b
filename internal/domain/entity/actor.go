package entity

// Role rol de un usuario. Conjunto cerrado, sin jerarquía implícita.
type Role string

// Roles válidos.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
)

// ParseRole devuelve el rol si pertenece al conjunto conocido.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleOperator:
		return Role(s), true
	}
	return "", false
}

// Actor es el descriptor ya autenticado que acompaña cada petición.
type Actor struct {
	ID         string
	Role       Role
	Department Department
}

// IsAdmin indica si el actor puede cruzar departamentos.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}
