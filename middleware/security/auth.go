package security

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"ChatLink/tools/errs"
	jwtlib "ChatLink/tools/security"
)

// context key: downstream handlers read the resolved identity with Current().
const CtxIdentityKey = "authIdentity"

var (
	mu   sync.RWMutex
	opts jwtlib.Options
)

// Configure installs the credential options the middleware verifies against.
// Called once from main before any route is served.
func Configure(o jwtlib.Options) {
	mu.Lock()
	defer mu.Unlock()
	opts = o
}

func options() jwtlib.Options {
	mu.RLock()
	defer mu.RUnlock()
	return opts
}

// Middleware rejects requests without a valid bearer credential and stores
// the resolved identity in the gin context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrAuthRequired.Msg})
			return
		}
		id, err := jwtlib.Verify(options(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrInvalidToken.Msg})
			return
		}
		c.Set(CtxIdentityKey, id)
		c.Next()
	}
}

// Current returns the identity the middleware resolved for this request.
func Current(c *gin.Context) *jwtlib.Identity {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*jwtlib.Identity)
	return id
}

// BearerToken extracts the credential from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// VerifyToken is the credential-service entry the websocket gateway uses:
// resolve a raw token to an identity or fail.
func VerifyToken(token string) (*jwtlib.Identity, error) {
	return jwtlib.Verify(options(), token)
}
