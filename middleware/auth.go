package middleware

import (
	"net/http"
	"strings"

	"law_flow_forms/config"
	"law_flow_forms/db"
	"law_flow_forms/models"
	"law_flow_forms/services"

	"github.com/labstack/echo/v4"
)

const (
	// SessionCookieName is the name of the session cookie shared with the main application
	SessionCookieName = "law_flow_session"
	// ContextKeyUser is the context key for the authenticated user
	ContextKeyUser = "user"
	// ContextKeyFirm is the context key for the user's firm
	ContextKeyFirm = "firm"
	// ContextKeySession is the context key for the session
	ContextKeySession = "session"
)

// RequireAuth authenticates staff requests with the session cookie or a Bearer session token
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := sessionToken(c)
			if token == "" {
				return services.ErrUnauthorized
			}

			session, err := services.ValidateSession(db.DB, token)
			if err != nil {
				clearSessionCookie(c)
				return services.ErrUnauthorized
			}

			if !session.User.IsActive {
				clearSessionCookie(c)
				return services.ErrUnauthorized
			}

			c.Set(ContextKeyUser, &session.User)
			if session.User.Firm != nil {
				c.Set(ContextKeyFirm, session.User.Firm)
			}
			c.Set(ContextKeySession, session)

			return next(c)
		}
	}
}

func sessionToken(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireRole is middleware that requires specific roles
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetCurrentUser(c)
			if user == nil {
				return services.ErrUnauthorized
			}

			for _, role := range roles {
				if user.Role == role {
					return next(c)
				}
			}
			return services.ErrForbidden
		}
	}
}

// RequireStaff allows every firm role except clients
func RequireStaff() echo.MiddlewareFunc {
	return RequireRole(models.RoleAdmin, models.RoleLawyer, models.RoleStaff)
}

// RequireFirm ensures the user has a firm assigned
func RequireFirm() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetCurrentUser(c)
			if user == nil {
				return services.ErrUnauthorized
			}
			if !user.HasFirm() {
				return services.ErrForbidden
			}
			return next(c)
		}
	}
}

// GetCurrentUser retrieves the current user from context
func GetCurrentUser(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetCurrentFirm retrieves the current firm from context
func GetCurrentFirm(c echo.Context) *models.Firm {
	firm, ok := c.Get(ContextKeyFirm).(*models.Firm)
	if !ok {
		return nil
	}
	return firm
}

// CurrentFirmID returns the firm of the authenticated user, or ""
func CurrentFirmID(c echo.Context) string {
	user := GetCurrentUser(c)
	if user == nil || user.FirmID == nil {
		return ""
	}
	return *user.FirmID
}

// clearSessionCookie clears the session cookie
func clearSessionCookie(c echo.Context) {
	var isProduction bool
	if cfg, ok := c.Get("config").(*config.Config); ok {
		isProduction = cfg.Environment == "production"
	}

	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	}
	c.SetCookie(cookie)
}
