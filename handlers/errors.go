package handlers

import (
	"errors"
	"log"

	"battle-engine/services"

	"github.com/gofiber/fiber/v2"
)

func statusFor(code services.Code) int {
	switch code {
	case services.CodeNotFound:
		return fiber.StatusNotFound
	case services.CodeInvalidState, services.CodeRegistrationClosed:
		return fiber.StatusConflict
	case services.CodeNotParticipant, services.CodeRequirementsNotMet:
		return fiber.StatusForbidden
	case services.CodeOnCooldown:
		return fiber.StatusTooManyRequests
	case services.CodeCapacityExceeded, services.CodeUnknownPowerUp:
		return fiber.StatusUnprocessableEntity
	case services.CodeInvalidArgument:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// respondError writes a domain error as {"error", "code", "metadata"}.
func respondError(c *fiber.Ctx, err error) error {
	code := services.CodeOf(err)
	status := statusFor(code)
	if status == fiber.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	body := fiber.Map{"error": err.Error(), "code": code}
	var de *services.Error
	if errors.As(err, &de) && len(de.Metadata) > 0 {
		body["metadata"] = de.Metadata
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": services.CodeInvalidArgument})
}
