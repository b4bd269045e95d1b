package http

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockflow/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Los errores nombran el campo como lo ve el cliente (tag json).
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodifica el JSON y valida la forma antes de llegar al caso de uso.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return domain.NewValidationError("body", "cuerpo inválido")
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.NewValidationError(fe.Field(), describe(fe))
		}
		return domain.NewValidationError("body", "cuerpo inválido")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es obligatorio"
	case "max":
		return "supera el largo máximo " + fe.Param()
	case "min":
		return "no alcanza el mínimo " + fe.Param()
	case "gt":
		return "debe ser mayor que " + fe.Param()
	case "uuid":
		return "debe ser un UUID"
	case "oneof":
		return "debe ser uno de: " + fe.Param()
	}
	return "valor inválido"
}

// queryInt lee un entero opcional; ausente devuelve 0.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(key, "debe ser un entero")
	}
	return n, nil
}
