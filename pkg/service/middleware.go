package service

import (
	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/researchmesh/a2a-go/pkg/auth"
)

const claimsKey = "claims"

/*
BearerAuth verifies the Authorization header on every request and
stashes the verified claims in the request locals. No token, bad token
and rate-limited callers all get a plain 401.
*/
func BearerAuth(svc *auth.Service) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		token, err := auth.FromHeader(ctx.Get("Authorization"))

		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		claims, err := svc.VerifyToken(token)

		if err != nil {
			log.Warn("rejected bearer token", "path", ctx.Path(), "error", err)
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid bearer token",
			})
		}

		ctx.Locals(claimsKey, claims)
		return ctx.Next()
	}
}

/*
ClaimsFrom returns the verified claims for the request, or nil when the
gateway runs without authentication.
*/
func ClaimsFrom(ctx fiber.Ctx) *auth.Claims {
	claims, ok := ctx.Locals(claimsKey).(*auth.Claims)

	if !ok {
		return nil
	}

	return claims
}
