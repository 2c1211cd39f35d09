package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/axiom/service"
	"go.uber.org/zap"
)

const (
	SessionCookie   = "siwe_session"
	ChallengeCookie = "siwe_challenge"
)

// AuthHandlers contains HTTP handlers for the SIWE endpoints
type AuthHandlers struct {
	authService   *service.AuthService
	gate          *Gate
	log           *zap.Logger
	metrics       *Metrics
	secureCookies bool
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, gate *Gate, log *zap.Logger, metrics *Metrics, secureCookies bool) *AuthHandlers {
	return &AuthHandlers{
		authService:   authService,
		gate:          gate,
		log:           log,
		metrics:       metrics,
		secureCookies: secureCookies,
	}
}

// Nonce issues a fresh challenge and binds it to the browser with a cookie
func (h *AuthHandlers) Nonce(c *gin.Context) {
	challenge, err := h.authService.IssueChallenge()
	if err != nil {
		h.log.Error("failed to issue challenge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate nonce"})
		return
	}

	ttl := time.Until(challenge.ExpiresAt)
	h.setCookie(c, ChallengeCookie, challenge.Token, ttl)

	c.JSON(http.StatusOK, gin.H{
		"nonce":     challenge.Nonce,
		"expiresIn": int(ttl.Round(time.Second).Seconds()),
	})
}

// Verify checks a signed SIWE message and opens a session
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.signIn("invalid_request")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Message and signature are required",
			"code":    CodeInvalidRequest,
		})
		return
	}

	challengeToken, _ := c.Cookie(ChallengeCookie)
	priorToken, _ := c.Cookie(SessionCookie)

	session, err := h.authService.SignIn(c.Request.Context(), service.SignInRequest{
		Message:        req.Message,
		Signature:      req.Signature,
		ChallengeToken: challengeToken,
		Host:           c.Request.Host,
		PriorToken:     priorToken,
	})
	if err != nil {
		if service.IsVerificationError(err) {
			// The reason stays in the log so callers learn nothing from the response
			h.metrics.signIn("rejected")
			h.log.Info("siwe verification failed", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Signature verification failed",
				"code":    "SIWE_VERIFICATION_FAILED",
			})
			return
		}

		h.metrics.signIn("error")
		h.log.Error("siwe sign-in failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to verify signature",
		})
		return
	}

	h.metrics.signIn("success")
	h.setCookie(c, SessionCookie, session.Token, time.Until(session.ExpiresAt))
	h.clearCookie(c, ChallengeCookie)

	h.log.Info("siwe sign-in",
		zap.String("address", session.Address),
		zap.Int64("chain_id", session.ChainID))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": session.Address,
		"chainId": session.ChainID,
	})
}

// Session reports whether the caller is signed in
func (h *AuthHandlers) Session(c *gin.Context) {
	auth, err := h.gate.Session(c.Request)
	if err != nil {
		h.log.Error("session lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Authentication check failed"})
		return
	}
	if auth == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated":   true,
		"address":         auth.Address,
		"chainId":         auth.ChainID,
		"authenticatedAt": auth.AuthenticatedAt,
	})
}

// Logout revokes the caller's session. It always succeeds from the caller's
// point of view.
func (h *AuthHandlers) Logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil {
		if err := h.authService.SignOut(c.Request.Context(), token); err != nil {
			h.log.Error("failed to revoke session", zap.Error(err))
		}
	}

	h.clearCookie(c, SessionCookie)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandlers) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.secureCookies, true)
}

func (h *AuthHandlers) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, "", -1, "/", "", h.secureCookies, true)
}
