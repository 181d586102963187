package server

import (
	"time"

	"devsnippet/internal/auth"
	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/policy"
	"devsnippet/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxPaginationLimit = 100

// parsePage reads limit and offset. Without a limit every row is returned.
func parsePage(c *fiber.Ctx) service.Page {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		limit = 0
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return service.Page{Limit: limit, Offset: offset}
}

// actor returns the identity set by the session middleware.
func actor(c *fiber.Ctx) policy.Identity {
	identity, _ := middleware.IdentityFrom(c)
	return identity
}

// parseBody decodes the JSON request body into dest.
func parseBody(c *fiber.Ctx, dest any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dest); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	return nil
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		Expires:  time.Now().Add(auth.SessionTTL),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// requireFeature hides a route when its flag is off for the caller.
// Flags that are not configured count as on.
func (s *Server) requireFeature(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.LocalUserID).(string)
		if !s.flags.EnabledOr(name, userID, true) {
			return models.RespondWithError(c, models.NewNotFoundError("Route"))
		}
		return c.Next()
	}
}
