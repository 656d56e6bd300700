package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskmanager/internal/service/auth"
)

// TokenCookie is the cookie carrying the session token for browser clients.
const TokenCookie = "token"

type AuthHandler struct {
	auth *auth.Service
	// production cookies are cross-site: SameSite=None plus Secure
	secureCookies bool
	logger        *zap.Logger
}

func NewAuthHandler(authService *auth.Service, secureCookies bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:          authService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	sess, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setTokenCookie(c, sess.Token, h.auth.TokenTTL(), sess.ExpiresAt)
	c.JSON(http.StatusCreated, gin.H{
		"ok":    true,
		"token": sess.Token,
		"user":  sess.User,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	sess, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setTokenCookie(c, sess.Token, h.auth.TokenTTL(), sess.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"token": sess.Token,
		"user":  sess.User,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := requireUserID(c, h.logger)
	if !ok {
		return
	}

	user, err := h.auth.Me(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout handles POST /api/auth/logout. Only the cookie copy of the token
// is cleared; bearer tokens stay valid until they expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setTokenCookie(c, "", -1, time.Unix(0, 0))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// setTokenCookie writes the token cookie. A negative ttl deletes it.
// Expires mirrors the token's exp for clients that ignore Max-Age.
func (h *AuthHandler) setTokenCookie(c *gin.Context, value string, ttl time.Duration, expires time.Time) {
	cookie := &http.Cookie{
		Name:     TokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(ttl.Seconds())
	}
	if h.secureCookies {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	http.SetCookie(c.Writer, cookie)
}
