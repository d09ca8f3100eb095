// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller from an "Authorization: Bearer <token>"
// header. Authenticate only parses: a valid token stores the principal and
// its ids in the Gin context, a missing one leaves the request anonymous.
// RequireAuth enforces presence on the routes that need it.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-studio-backend/internal/auth"
)

// Gin context keys set by Authenticate.
const (
	CtxUserID     = "userID"     // string, decimal user id
	CtxEmployeeID = "employeeID" // uint
	CtxClientID   = "clientID"   // uint
	CtxPrincipal  = "principal"  // auth.Principal
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(raw string) (auth.Principal, error)
}

// Authenticate parses the bearer token, if any. An invalid token is
// rejected with 401 even on routes that do not require authentication, so
// clients notice expired credentials.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		if h == "" || v == nil {
			c.Next()
			return
		}
		scheme, raw, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			abortUnauthorized(c, "malformed Authorization header")
			return
		}
		p, err := v.Verify(raw)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(CtxPrincipal, p)
		c.Set(CtxUserID, strconv.FormatUint(uint64(p.UserID), 10))
		if p.EmployeeID != nil {
			c.Set(CtxEmployeeID, *p.EmployeeID)
		}
		if p.ClientID != nil {
			c.Set(CtxClientID, *p.ClientID)
		}
		c.Next()
	}
}

// RequireAuth rejects anonymous requests when required is true. With
// required false it is a pass-through, which keeps local setups usable
// without a login step.
func RequireAuth(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if required {
			if _, ok := PrincipalFrom(c); !ok {
				abortUnauthorized(c, "authentication required")
				return
			}
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// EmployeeIDFrom returns the caller's employee id, if the caller is staff.
func EmployeeIDFrom(c *gin.Context) (uint, bool) {
	v, ok := c.Get(CtxEmployeeID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="studio"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
