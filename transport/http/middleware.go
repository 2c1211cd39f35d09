package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/axiom/core"
	"go.uber.org/zap"
)

const (
	CodeAuthRequired    = "SIWE_AUTH_REQUIRED"
	CodeAddressMismatch = "ADDRESS_MISMATCH"
	CodeInvalidRequest  = "INVALID_REQUEST"

	authContextKey = "siweAuth"
)

// ClaimFields are the request body fields that name the wallet an action is
// performed for, in lookup order
var ClaimFields = []string{
	"ownerAddress",
	"proposerAddress",
	"walletAddress",
	"tenantAddress",
	"buyerAddress",
}

// ErrorResponse is the JSON body of every gate rejection
type ErrorResponse struct {
	Error                string `json:"error"`
	Code                 string `json:"code,omitempty"`
	AuthenticatedAddress string `json:"authenticatedAddress,omitempty"`
}

// SessionResolver looks up live sessions by token
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*core.Session, error)
}

// AddressVerification is the outcome of matching a request's claimed wallet
// against its session
type AddressVerification struct {
	Valid                bool
	Status               int
	Error                string
	Code                 string
	AuthenticatedAddress string
}

func (v *AddressVerification) response() ErrorResponse {
	return ErrorResponse{Error: v.Error, Code: v.Code, AuthenticatedAddress: v.AuthenticatedAddress}
}

// Gate resolves the SIWE session cookie and enforces wallet ownership on
// protected routes. It never mutates or revokes sessions.
type Gate struct {
	sessions SessionResolver
	log      *zap.Logger
	metrics  *Metrics
}

// NewGate creates a gate backed by sessions
func NewGate(sessions SessionResolver, log *zap.Logger, metrics *Metrics) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{sessions: sessions, log: log, metrics: metrics}
}

// Session returns the authenticated identity for r, or nil when the request
// carries no live session. Only store failures produce an error.
func (g *Gate) Session(r *http.Request) (*core.AuthContext, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	session, err := g.sessions.ResolveSession(r.Context(), cookie.Value)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session.Context(), nil
}

// RequireSession rejects requests without a live session with 401 and
// attaches the AuthContext for downstream handlers
func (g *Gate) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, ok := g.authenticate(c)
		if !ok {
			return
		}
		c.Set(authContextKey, auth)
		c.Next()
	}
}

// RequireAddressMatch is RequireSession plus a check that the wallet claimed
// in the JSON body is the authenticated one. fields overrides ClaimFields.
func (g *Gate) RequireAddressMatch(fields ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := g.VerifyAddress(c, fields...)
		if err != nil {
			g.fail(c, err)
			return
		}
		if !v.Valid {
			c.AbortWithStatusJSON(v.Status, v.response())
			return
		}
		c.Next()
	}
}

// VerifyAddress is the inline form of RequireAddressMatch for handlers that
// build their own responses. The request body stays readable afterwards.
func (g *Gate) VerifyAddress(c *gin.Context, fields ...string) (*AddressVerification, error) {
	auth, err := g.Session(c.Request)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		g.metrics.gate("unauthenticated")
		return &AddressVerification{
			Status: http.StatusUnauthorized,
			Error:  "Wallet authentication required. Please sign in with your wallet.",
			Code:   CodeAuthRequired,
		}, nil
	}
	c.Set(authContextKey, auth)

	if len(fields) == 0 {
		fields = ClaimFields
	}

	claimed, present, err := claimedAddress(c, fields)
	if err != nil {
		g.metrics.gate("bad_request")
		return &AddressVerification{
			Status:               http.StatusBadRequest,
			Error:                "Invalid JSON body",
			Code:                 CodeInvalidRequest,
			AuthenticatedAddress: auth.Address,
		}, nil
	}

	if present && !core.SameAddress(claimed, auth.Address) {
		g.metrics.gate("mismatch")
		g.log.Info("address mismatch",
			zap.String("authenticated", auth.Address),
			zap.String("claimed", claimed),
			zap.String("path", c.Request.URL.Path))
		return &AddressVerification{
			Status:               http.StatusForbidden,
			Error:                "Address mismatch: you can only perform actions for your authenticated wallet",
			Code:                 CodeAddressMismatch,
			AuthenticatedAddress: auth.Address,
		}, nil
	}

	g.metrics.gate("allowed")
	return &AddressVerification{
		Valid:                true,
		Status:               http.StatusOK,
		AuthenticatedAddress: auth.Address,
	}, nil
}

// AuthFromContext returns the identity attached by the gate
func AuthFromContext(c *gin.Context) (*core.AuthContext, bool) {
	v, ok := c.Get(authContextKey)
	if !ok {
		return nil, false
	}
	auth, ok := v.(*core.AuthContext)
	return auth, ok
}

func (g *Gate) authenticate(c *gin.Context) (*core.AuthContext, bool) {
	auth, err := g.Session(c.Request)
	if err != nil {
		g.fail(c, err)
		return nil, false
	}
	if auth == nil {
		g.metrics.gate("unauthenticated")
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error: "Wallet authentication required. Please sign in with your wallet.",
			Code:  CodeAuthRequired,
		})
		return nil, false
	}
	g.metrics.gate("allowed")
	return auth, true
}

func (g *Gate) fail(c *gin.Context, err error) {
	g.metrics.gate("error")
	g.log.Error("session lookup failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Authentication check failed"})
}

// claimedAddress reads the first of fields present in the JSON body and puts
// the body back for the handler. Keys match case-insensitively, as they do
// when the handler binds the body. A present value that is not a string, or
// a field sent under more than one casing, yields an unmatchable claim so
// the comparison fails closed.
func claimedAddress(c *gin.Context, fields []string) (string, bool, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return "", false, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false, nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false, err
	}

	for _, field := range fields {
		var (
			value json.RawMessage
			seen  int
		)
		for key, v := range body {
			if strings.EqualFold(key, field) {
				value = v
				seen++
			}
		}
		if seen > 1 {
			return "", true, nil
		}
		if seen == 0 || string(value) == "null" {
			continue
		}

		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return string(value), true, nil
		}
		if s == "" {
			continue
		}
		return s, true, nil
	}
	return "", false, nil
}
