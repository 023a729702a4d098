package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

type TokenHandler struct {
	accounts usecase.AccountStore
	cfg      TokenConfig
	now      func() time.Time
}

func NewTokenHandler(accounts usecase.AccountStore, cfg TokenConfig) *TokenHandler {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &TokenHandler{accounts: accounts, cfg: cfg, now: time.Now}
}

type tokenReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)

// IssueToken handles POST /v1/token: email and password in, HS256 bearer token out.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	acct, err := h.accounts.GetByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(c, errBadCredentials)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		writeError(c, errBadCredentials)
		return
	}

	now := h.now()
	claims := jwt.MapClaims{
		"iss":  h.cfg.Issuer,              // issuer
		"aud":  h.cfg.Audience,            // audience
		"sub":  acct.ID,                   // subject
		"role": acct.Role,                 // customer | admin
		"iat":  now.Unix(),                // issued at
		"nbf":  now.Unix(),                // not before
		"exp":  now.Add(h.cfg.TTL).Unix(), // expire
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.cfg.Secret)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int(h.cfg.TTL.Seconds()),
	})
}
