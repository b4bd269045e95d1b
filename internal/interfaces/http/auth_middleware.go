package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/domain/entity"
	"github.com/jhoicas/stockflow/pkg/jwt"
)

// Locals keys para el actor autenticado en Fiber.
const (
	LocalUserID     = "user_id"
	LocalRole       = "role"
	LocalDepartment = "department"
)

func unauthorized(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail(code, msg))
}

// AuthMiddleware valida el Bearer Token JWT y deja el descriptor del actor en c.Locals.
// Un rol fuera del conjunto conocido se rechaza aquí: el resto de la API asume roles válidos.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "MISSING_TOKEN", "Authorization header requerido")
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return unauthorized(c, "INVALID_TOKEN", "formato: Bearer <token>")
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return unauthorized(c, "MISSING_TOKEN", "token vacío")
		}
		userID, role, department, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return unauthorized(c, "INVALID_TOKEN", "token inválido o expirado")
		}
		if role == "" {
			return unauthorized(c, "MISSING_ROLE", "el token no incluye rol")
		}
		r, ok := entity.ParseRole(role)
		if !ok {
			return unauthorized(c, "INVALID_ROLE", "rol desconocido")
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalRole, string(r))
		c.Locals(LocalDepartment, string(entity.NormalizeDepartment(department)))
		return c.Next()
	}
}

// RequireRole deja pasar sólo a los roles indicados. Va después de AuthMiddleware.
func RequireRole(roles ...entity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return unauthorized(c, "MISSING_ROLE", "rol requerido")
		}
		for _, r := range roles {
			if string(r) == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.Fail("FORBIDDEN", "rol sin permiso para esta operación"))
	}
}

func local(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string { return local(c, LocalUserID) }

// GetRole devuelve el rol del contexto.
func GetRole(c *fiber.Ctx) string { return local(c, LocalRole) }

// GetDepartment devuelve el departamento normalizado del contexto.
func GetDepartment(c *fiber.Ctx) string { return local(c, LocalDepartment) }

// GetActor arma el descriptor que reciben los casos de uso; nil sin autenticación.
func GetActor(c *fiber.Ctx) *entity.Actor {
	id := GetUserID(c)
	if id == "" {
		return nil
	}
	return &entity.Actor{
		ID:         id,
		Role:       entity.Role(GetRole(c)),
		Department: entity.Department(GetDepartment(c)),
	}
}
