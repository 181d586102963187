package middleware

import (
	"context"
	"strings"

	"devsnippet/internal/models"
	"devsnippet/internal/policy"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie is the name of the http-only cookie carrying the session token.
const SessionCookie = "token"

// Fiber locals set by session middleware.
const (
	LocalIdentity = "identity"
	LocalUserID   = "userID"
)

// SessionResolver turns a raw token into the acting identity.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (policy.Identity, error)
}

// ExtractToken returns the session token from the cookie, falling back to a Bearer header.
func ExtractToken(c *fiber.Ctx) string {
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// SessionRequired resolves the session and rejects the request when it is missing or stale.
func SessionRequired(resolver SessionResolver) fiber.Handler {
	return sessionHandler(resolver, ExtractToken)
}

// WebSocketSessionRequired additionally accepts the token as a query parameter,
// since browsers cannot attach headers to an upgrade request.
func WebSocketSessionRequired(resolver SessionResolver) fiber.Handler {
	return sessionHandler(resolver, func(c *fiber.Ctx) string {
		if token := c.Query("token"); token != "" {
			return token
		}
		return ExtractToken(c)
	})
}

func sessionHandler(resolver SessionResolver, extract func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extract(c)
		if token == "" {
			return models.RespondWithError(c, models.NewUnauthenticatedError("No token, authorization denied"))
		}

		identity, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			return models.RespondWithError(c, err)
		}

		SetIdentity(c, identity)
		return c.Next()
	}
}

// SetIdentity attaches identity to the Fiber locals and request context.
func SetIdentity(c *fiber.Ctx, identity policy.Identity) {
	c.Locals(LocalIdentity, identity)
	c.Locals(LocalUserID, identity.ID)
	c.SetUserContext(WithUserID(c.UserContext(), identity.ID))
}

// IdentityFrom returns the identity attached by session middleware, if any.
func IdentityFrom(c *fiber.Ctx) (policy.Identity, bool) {
	identity, ok := c.Locals(LocalIdentity).(policy.Identity)
	return identity, ok && identity.Authenticated()
}

// AdminRequired rejects identities that cannot moderate. Must run after SessionRequired.
func AdminRequired(c *fiber.Ctx) error {
	identity, _ := IdentityFrom(c)
	if err := policy.RequireModerator(identity); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.Next()
}
