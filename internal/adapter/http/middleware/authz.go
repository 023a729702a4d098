package middleware

import (
	"net/http"
	"strings"
	"time"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

type AuthConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

type Authz struct {
	cfg AuthConfig
}

func NewAuthz(cfg AuthConfig) *Authz {
	return &Authz{cfg: cfg}
}

// Claims carried by access tokens issued by POST /v1/token.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate verifies the bearer token and stores the caller's Principal.
func (a *Authz) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		var claims Claims
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			return a.cfg.Secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(a.cfg.Issuer),
			jwt.WithAudience(a.cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second), // small clock skew
		)
		if err != nil || !token.Valid || claims.Subject == "" {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}

		p := domain.Principal{UserID: claims.Subject, Role: claims.Role}
		c.Set(principalKey, p)
		l := logging.From(c).With("user_id", p.UserID)
		logging.With(c, l)
		c.Request = c.Request.WithContext(logging.WithCtx(c.Request.Context(), l))
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Principal(c).Role != role {
			forbidden(c, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated caller, or the zero Principal.
func Principal(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": desc})
}
