package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/service"
)

const (
	// AccessCookie carries the short-lived access token for browser
	// clients; API clients use the Authorization header instead.
	AccessCookie = "hh_access"

	// RefreshCookie carries the long-lived refresh token. HttpOnly and
	// SameSite strict; sent everywhere so an expired access token can be
	// rotated in place on any protected route.
	RefreshCookie = "hh_refresh"

	principalKey = "principal"
)

// CookieWriter sets and clears the session cookie pair.
type CookieWriter struct {
	Secure bool
}

// WriteSession attaches a freshly minted pair to the response.
func (w CookieWriter) WriteSession(c *gin.Context, pair *service.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookie, pair.AccessToken,
		int(time.Until(pair.AccessExpiresAt).Seconds()), "/", "", w.Secure, true)
	c.SetCookie(RefreshCookie, pair.RefreshToken,
		int(time.Until(pair.RefreshExpiresAt).Seconds()), "/", "", w.Secure, true)
}

// Clear drops both session cookies.
func (w CookieWriter) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookie, "", -1, "/", "", w.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", w.Secure, true)
}

// AuthMiddleware validates the access token and enforces the role
// allow-list. An expired access token with a refresh cookie present is
// rotated transparently; the renewed pair rides out on the response
// and business handlers never notice. Every authentication failure
// collapses to the same 401; only a role mismatch is distinguishable,
// as 403.
func AuthMiddleware(authService *service.AuthService, cookies CookieWriter, allowed ...core.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractAccessToken(c)
		if token == "" {
			reauth(c)
			return
		}

		principal, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil && errors.Is(err, core.ErrExpired) {
			// Expired specifically, not malformed or forged: try the
			// refresh path before giving up.
			if refresh, cerr := c.Cookie(RefreshCookie); cerr == nil && refresh != "" {
				pair, rotated, rerr := authService.Rotate(c.Request.Context(), refresh, clientMeta(c))
				if rerr == nil {
					cookies.WriteSession(c, pair)
					principal, err = rotated, nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, core.ErrStoreUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
				return
			}
			reauth(c)
			return
		}

		if !roleAllowed(principal.Role, allowed) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the authenticated principal set by the
// middleware.
func PrincipalFrom(c *gin.Context) (*core.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*core.Principal)
	return p, ok
}

func extractAccessToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if token, err := c.Cookie(AccessCookie); err == nil {
		return token
	}
	return ""
}

func clientMeta(c *gin.Context) core.ClientMeta {
	return core.ClientMeta{
		Address:   c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func roleAllowed(role core.Role, allowed []core.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// reauth is the uniform authentication failure. Which validation step
// failed stays in the logs; the client only learns it must sign in
// again.
func reauth(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
}
