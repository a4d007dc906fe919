// Package http exposes the identity trust layer over gin.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/handyhub/identity/core"
	"github.com/handyhub/identity/ports"
	"github.com/handyhub/identity/service"
)

// AuthHandlers contains HTTP handlers for the auth endpoints.
type AuthHandlers struct {
	auth      *service.AuthService
	otp       *service.OtpService
	limiter   *service.RateLimiter
	directory ports.Directory
	cookies   CookieWriter

	// demoMode surfaces the raw OTP code in the request response so
	// test harnesses can complete the flow without a delivery channel.
	// Never enabled in production.
	demoMode bool
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(
	auth *service.AuthService,
	otp *service.OtpService,
	limiter *service.RateLimiter,
	directory ports.Directory,
	cookies CookieWriter,
	demoMode bool,
) *AuthHandlers {
	return &AuthHandlers{
		auth:      auth,
		otp:       otp,
		limiter:   limiter,
		directory: directory,
		cookies:   cookies,
		demoMode:  demoMode,
	}
}

// OtpRequestBody is the typed request for POST /auth/otp/request.
type OtpRequestBody struct {
	Contact string `json:"contact" binding:"required"`
	Channel string `json:"channel" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
}

// OtpVerifyBody is the typed request for POST /auth/otp/verify.
type OtpVerifyBody struct {
	Contact string `json:"contact" binding:"required"`
	Channel string `json:"channel" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

// TokenBody carries an optional refresh token for clients that do not
// use cookies.
type TokenBody struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is the issued pair as returned to non-cookie clients.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func tokenResponse(pair *service.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(pair.AccessExpiresAt).Seconds()),
	}
}

// RequestOtp handles POST /auth/otp/request.
func (h *AuthHandlers) RequestOtp(c *gin.Context) {
	var req OtpRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	channel := core.Channel(req.Channel)
	if !channel.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if !h.admit(c, service.OpOtpRequest, c.ClientIP()) {
		return
	}

	ch, code, err := h.otp.Create(c.Request.Context(), req.Contact, channel, req.Purpose)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
		return
	}

	resp := gin.H{
		"challenge_id": ch.ID,
		"expires_at":   ch.ExpiresAt.Unix(),
	}
	if h.demoMode {
		resp["code"] = code
	}
	c.JSON(http.StatusAccepted, resp)
}

// VerifyOtp handles POST /auth/otp/verify. For the "auth" purpose a
// successful verification is a login: the contact's principal gets a
// fresh session pair.
func (h *AuthHandlers) VerifyOtp(c *gin.Context) {
	var req OtpVerifyBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	channel := core.Channel(req.Channel)
	if !channel.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if !h.admit(c, service.OpOtpVerify, c.ClientIP()) {
		return
	}

	ch, err := h.otp.Verify(c.Request.Context(), req.Contact, channel, req.Purpose, req.Code)
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
			return
		}
		// Wrong code, expired, superseded, attempt ceiling: the client
		// learns only that verification failed.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "otp verification failed"})
		return
	}

	if req.Purpose != "auth" {
		c.JSON(http.StatusOK, gin.H{"verified": true, "challenge_id": ch.ID})
		return
	}

	contact := service.NormalizeContact(req.Contact, channel)
	principal, err := h.directory.LookupByContact(c.Request.Context(), contact, channel)
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
			return
		}
		reauth(c)
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), principal, clientMeta(c))
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
			return
		}
		reauth(c)
		return
	}

	h.cookies.WriteSession(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"principal": gin.H{"id": principal.ID, "role": principal.Role},
		"tokens":    tokenResponse(pair),
	})
}

// Refresh handles POST /auth/refresh: explicit rotation for clients
// that manage their own tokens.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	if !h.admit(c, service.OpRefresh, c.ClientIP()) {
		return
	}

	token := h.refreshTokenFrom(c)
	if token == "" {
		reauth(c)
		return
	}

	pair, principal, err := h.auth.Rotate(c.Request.Context(), token, clientMeta(c))
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
			return
		}
		reauth(c)
		return
	}

	h.cookies.WriteSession(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"principal": gin.H{"id": principal.ID, "role": principal.Role},
		"tokens":    tokenResponse(pair),
	})
}

// Logout handles POST /auth/logout. Always succeeds for invalid or
// already-revoked tokens.
func (h *AuthHandlers) Logout(c *gin.Context) {
	token := h.refreshTokenFrom(c)

	if token != "" {
		if err := h.auth.Logout(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
			return
		}
	}

	h.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll handles POST /auth/logout-all: bumps the session epoch so
// every outstanding refresh credential for the principal dies at once.
func (h *AuthHandlers) LogoutAll(c *gin.Context) {
	principal, ok := PrincipalFrom(c)
	if !ok {
		reauth(c)
		return
	}

	if _, err := h.auth.LogoutAll(c.Request.Context(), principal.ID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
		return
	}

	h.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "all sessions logged out"})
}

// Me returns the authenticated principal.
func (h *AuthHandlers) Me(c *gin.Context) {
	principal, ok := PrincipalFrom(c)
	if !ok {
		reauth(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   principal.ID,
		"role": principal.Role,
	})
}

// AdminOverview is a placeholder admin-tier route; reaching it proves
// the role gate.
func (h *AuthHandlers) AdminOverview(c *gin.Context) {
	principal, ok := PrincipalFrom(c)
	if !ok {
		reauth(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"admin": principal.ID})
}

// admit runs the rate check and writes the response itself on denial
// or storage failure. Returns true when the request may proceed.
func (h *AuthHandlers) admit(c *gin.Context, op, client string) bool {
	decision, err := h.limiter.Admit(c.Request.Context(), op, client)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
		return false
	}
	if !decision.Allowed {
		retryAfter := int(decision.RetryAfter/time.Second) + 1
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return false
	}
	return true
}

func (h *AuthHandlers) refreshTokenFrom(c *gin.Context) string {
	var req TokenBody
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if token, err := c.Cookie(RefreshCookie); err == nil {
		return token
	}
	return ""
}
