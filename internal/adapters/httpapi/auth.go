package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/example/compliance/internal/ctxutil"
)

// RoleAdmin is the role claim required by mutating routes.
const RoleAdmin = "admin"

const (
	localActorID = "actor_id"
	localRole    = "role"
)

// authMiddleware verifies an HS256 bearer token and stores the actor and role
// in the request locals.
func authMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims := jwt.MapClaims{}
		_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		role, _ := claims["role"].(string)

		c.Locals(localActorID, actor)
		c.Locals(localRole, strings.ToLower(role))
		c.SetUserContext(ctxutil.WithActorID(c.UserContext(), actor))
		return c.Next()
	}
}

// requireRole rejects callers whose role claim differs from role.
func requireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if got, _ := c.Locals(localRole).(string); got != role {
			return fiber.NewError(fiber.StatusForbidden, fmt.Sprintf("role %q required", role))
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("authorization header must be a bearer token")
	}
	return strings.TrimSpace(token), nil
}

// actorFromClaims reads the caller identity from "sub", falling back to "id".
func actorFromClaims(claims jwt.MapClaims) (string, error) {
	for _, key := range []string{"sub", "id"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	return "", errors.New("token has no subject")
}

func actorID(c *fiber.Ctx) string {
	id, _ := c.Locals(localActorID).(string)
	return id
}
