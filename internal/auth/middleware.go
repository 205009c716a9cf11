package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
	"classattend/internal/model"
)

// CookieName is the HttpOnly cookie carrying the session token.
const CookieName = "session"

const (
	ctxUser   = "currentUser"
	ctxClaims = "claims"
)

// UserLoader fetches the account a session points at.
type UserLoader interface {
	Get(ctx context.Context, id int64) (model.User, error)
}

// Revoker records logged-out sessions.
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	Revoked(ctx context.Context, jti string) (bool, error)
}

// Sessions issues, resolves and ends cookie or bearer sessions.
type Sessions struct {
	Key     string
	Issuer  string
	TTL     time.Duration
	Secure  bool
	Users   UserLoader
	Revoked Revoker
}

// Start issues a token for usr and sets the session cookie. The token is also
// returned for clients that prefer the Authorization header.
func (s *Sessions) Start(c *gin.Context, usr model.User) (Token, error) {
	tok, err := Issue(usr, s.Issuer, s.Key, s.TTL)
	if err != nil {
		return Token{}, err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, tok.Value, int(s.TTL.Seconds()), "/", "", s.Secure, true)
	return tok, nil
}

// End revokes the current session, if any, and clears the cookie.
func (s *Sessions) End(c *gin.Context) error {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", s.Secure, true)
	raw := tokenFrom(c)
	if raw == "" {
		return nil
	}
	claims, err := Parse(raw, s.Key, s.Issuer)
	if err != nil {
		return nil
	}
	return s.Revoked.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time)
}

// Load resolves the caller from the request token and reloads the account
// from the store. Requests without a valid session pass through
// anonymous; the route policy decides whether that is allowed.
func (s *Sessions) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" {
			c.Next()
			return
		}
		claims, err := Parse(raw, s.Key, s.Issuer)
		if err != nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		revoked, err := s.Revoked.Revoked(ctx, claims.ID)
		if err != nil {
			log.Printf("session %s: revocation check failed: %v", claims.ID, err)
			c.Next()
			return
		}
		if revoked {
			c.Next()
			return
		}
		usr, err := s.Users.Get(ctx, claims.UserID)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				log.Printf("session %s: load user %d: %v", claims.ID, claims.UserID, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
				return
			}
			c.Next()
			return
		}
		c.Set(ctxClaims, claims)
		c.Set(ctxUser, usr)
		c.Next()
	}
}

// CurrentUser returns the authenticated caller.
func CurrentUser(c *gin.Context) (model.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return model.User{}, false
	}
	usr, ok := v.(model.User)
	return usr, ok
}

func tokenFrom(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie
	}
	return ""
}
