package middleware

import (
	"consult-booking/core/access"
	"consult-booking/core/constants"
	"consult-booking/core/controller"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/core/utils"

	"github.com/labstack/echo/v4"
)

type Middleware struct {
	jwtSecret string
	response  controller.BaseController
}

func NewMiddleware(jwtSecret string) *Middleware {
	return &Middleware{
		jwtSecret: jwtSecret,
		response:  controller.NewBaseController(),
	}
}

// AuthMiddleware validates the bearer token and stores the caller's Identity on the context.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, appErr := utils.GetTokenFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if appErr != nil {
				return m.response.Unauthorized(appErr.Code, appErr.Message)
			}

			claims, appErr := utils.ValidateAndParseToken(m.jwtSecret, token)
			if appErr != nil {
				logger.Warn("Middleware:AuthMiddleware:InvalidToken", "error", appErr)
				return m.response.Unauthorized(appErr.Code, appErr.Message)
			}

			role, ok := access.ParseRole(claims.Role)
			if !ok {
				return m.response.Forbidden(errors.ErrForbidden, "Unknown role")
			}

			c.Set(constants.ContextIdentity, access.Identity{ID: claims.UserID, Role: role})
			return next(c)
		}
	}
}

// RequireAction must run after AuthMiddleware.
func (m *Middleware) RequireAction(action access.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFrom(c)
			if !ok {
				return m.response.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
			}
			if !access.Can(identity.Role, action) {
				return m.response.Forbidden(errors.ErrForbidden, "You do not have permission to perform this action")
			}
			return next(c)
		}
	}
}

func IdentityFrom(c echo.Context) (access.Identity, bool) {
	identity, ok := c.Get(constants.ContextIdentity).(access.Identity)
	return identity, ok
}
