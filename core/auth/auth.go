// Package auth maps the auth provider's JWT claims to a core.Session.
package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

// SigningMethod is the JWT algorithm shared with the auth provider.
const SigningMethod = "HS256"

var (
	ErrInvalidClaims = errors.New("token must carry a subject, a school and a known role")

	audience = "Escola"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	SchoolID string `json:"school_id"`
}

var _ jwt.Claims = (*Claims)(nil)

// NewClaims builds claims for sess, expiring after conf.Server.JWTExpirationDelta.
func NewClaims(sess core.Session, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   sess.UserID,
			Audience:  audience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:     sess.Name,
		Role:     sess.Role,
		SchoolID: sess.SchoolID,
	}
}

func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.Subject == "" || c.SchoolID == "" || !core.ValidRole(c.Role) {
		return ErrInvalidClaims
	}
	return nil
}

func (c Claims) Session() core.Session {
	return core.Session{
		UserID:   c.Subject,
		Name:     c.Name,
		Role:     c.Role,
		SchoolID: c.SchoolID,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(SigningMethod), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a token signed with secretKey and returns its claims.
func ParseToken(token, secretKey string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	return claims, nil
}
