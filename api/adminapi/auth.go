package adminapi

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// localsPrincipal is the fiber locals key holding the authenticated username
const localsPrincipal = "principal"

// anonymousPrincipal names the caller while no users are configured
const anonymousPrincipal = "anonymous"

// authMiddleware requires HTTP Basic authentication as soon as one user
// exists. The authenticated username becomes the principal recorded on
// exports, imports and undo records.
func authMiddleware(users model.UsersStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := users.Count()
		if err != nil {
			return sendError(c, err)
		}
		if count == 0 {
			c.Locals(localsPrincipal, anonymousPrincipal)
			return c.Next()
		}

		username, password, ok := parseBasicAuth(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "missing credentials")
		}
		u, err := users.Authenticate(username, password)
		if err != nil {
			var credErr model.CredentialsError
			switch {
			case errors.Is(err, model.ErrUserDisabled):
				return c.Status(fiber.StatusForbidden).JSON(
					errorResponse{Error: "access_denied", ErrorDescription: err.Error()},
				)
			case errors.As(err, &credErr):
				return unauthorized(c, err.Error())
			}
			return sendError(c, err)
		}
		c.Locals(localsPrincipal, u.Username)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, description string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="candlepin"`)
	return c.Status(fiber.StatusUnauthorized).JSON(
		errorResponse{Error: "invalid_client", ErrorDescription: description},
	)
}

// principal returns the name of the caller
func principal(c *fiber.Ctx) string {
	if p, ok := c.Locals(localsPrincipal).(string); ok && p != "" {
		return p
	}
	return anonymousPrincipal
}

// parseBasicAuth decodes the credentials of a Basic authorization header
func parseBasicAuth(header string) (username, password string, ok bool) {
	encoded, found := strings.CutPrefix(header, "Basic ")
	if !found {
		return "", "", false
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(b), ":")
}
