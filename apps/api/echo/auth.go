package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/auth"
)

const (
	tokenContextKey   = "userToken"
	sessionContextKey = "session"
)

// newJWTConfig verifies tokens issued by the auth provider (or `admin token`).
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: auth.SigningMethod,
		ContextKey:    tokenContextKey,
		Claims:        new(auth.Claims),
	}
}

// sessionMiddleware turns the verified token claims into the request's core.Session.
func sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		token, ok := ctx.Get(tokenContextKey).(*jwt.Token)
		if !ok {
			return errUnauthorized
		}
		claims, ok := token.Claims.(*auth.Claims)
		if !ok {
			return errUnauthorized
		}
		ctx.Set(sessionContextKey, claims.Session())
		return next(ctx)
	}
}

func getSession(ctx echo.Context) (core.Session, error) {
	if sess, ok := ctx.Get(sessionContextKey).(core.Session); ok {
		return sess, nil
	}
	return core.Session{}, errUnauthorized
}
