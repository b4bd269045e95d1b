package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/domain"
)

// ErrorHandler traduce la taxonomía de errores de dominio al sobre {success:false, error, code}.
// Los handlers sólo devuelven el error; aquí se decide status, código y qué se loguea.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := mapError(err)
		ev := log.Debug()
		switch {
		case status >= fiber.StatusInternalServerError && status != fiber.StatusServiceUnavailable:
			ev = log.Error()
		case status == fiber.StatusServiceUnavailable:
			ev = log.Warn()
		}
		ev.Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Str("code", body.Code).
			Msg("request fallida")
		return c.Status(status).JSON(body)
	}
}

func mapError(err error) (int, dto.Envelope) {
	var (
		verr  *domain.ValidationError
		stock *domain.InsufficientStockError
		ferr  *fiber.Error
	)
	switch {
	// Antes que el resto: su causa puede envolver otros errores de dominio.
	case errors.Is(err, domain.ErrPartialEffect):
		return fiber.StatusInternalServerError, dto.Fail("PARTIAL_EFFECT", "operación incompleta: el stock requiere conciliación")
	case errors.As(err, &verr):
		env := dto.Fail("VALIDATION", verr.Error())
		env.Field = verr.Field
		return fiber.StatusBadRequest, env
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.Fail("VALIDATION", "datos inválidos")
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.Fail("UNAUTHORIZED", "autenticación requerida")
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.Fail("FORBIDDEN", "acceso denegado al recurso")
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.Fail("NOT_FOUND", "recurso no encontrado")
	case errors.As(err, &stock):
		return fiber.StatusConflict, dto.Fail("INSUFFICIENT_STOCK", stock.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, dto.Fail("INSUFFICIENT_STOCK", domain.ErrInsufficientStock.Error())
	case errors.Is(err, domain.ErrNoStockRecord):
		return fiber.StatusConflict, dto.Fail("NO_STOCK_RECORD", domain.ErrNoStockRecord.Error())
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, dto.Fail("DUPLICATE", "el recurso ya existe")
	case errors.Is(err, domain.ErrTransientStore):
		return fiber.StatusServiceUnavailable, dto.Fail("TRANSIENT", "servicio no disponible temporalmente, reintente")
	case errors.As(err, &ferr):
		return ferr.Code, dto.Fail(httpCode(ferr.Code), ferr.Message)
	}
	return fiber.StatusInternalServerError, dto.Fail("INTERNAL", "operación fallida")
}

func httpCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "BODY_TOO_LARGE"
	}
	if status >= fiber.StatusInternalServerError {
		return "INTERNAL"
	}
	return "BAD_REQUEST"
}
