package security

import (
	"strings"

	mid "github.com/affanraza84/Chatting-App/middleware"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/affanraza84/Chatting-App/tools/security"
	"github.com/gin-gonic/gin"
)

type Options struct {
	CookieName                string // "jwt", set by the login endpoint
	HeaderToken               string // "x-auth-token"
	EnableAuthorizationBearer bool
	Authenticator             security.Authenticator
}

func DefaultOptions(a security.Authenticator) *Options {
	return &Options{
		CookieName:                "jwt",
		HeaderToken:               "x-auth-token",
		EnableAuthorizationBearer: true,
		Authenticator:             a,
	}
}

// Token extracts the credential: cookie first, then the token header,
// then Authorization: Bearer.
func Token(c *gin.Context, opts *Options) string {
	if opts.CookieName != "" {
		if v, err := c.Cookie(opts.CookieName); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if opts.HeaderToken != "" {
		if v := strings.TrimSpace(c.GetHeader(opts.HeaderToken)); v != "" {
			return v
		}
	}
	if opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); len(authz) > 7 &&
			strings.EqualFold(authz[:7], "bearer ") {
			return strings.TrimSpace(authz[7:])
		}
	}
	return ""
}

// Middleware authenticates the request and stores the user id under
// middleware.CtxUserIDKey. Failures abort with 401.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil || opts.Authenticator == nil {
		panic("security: Middleware needs an Authenticator")
	}
	return func(c *gin.Context) {
		token := Token(c, opts)
		if token == "" {
			mid.Fail(c, errs.ErrAuthentication.WrapMsg("Unauthorized - No Token Provided"))
			return
		}
		uid, err := opts.Authenticator.Authenticate(token)
		if err != nil {
			mid.Fail(c, err)
			return
		}
		c.Set(mid.CtxUserIDKey, uid)
		c.Next()
	}
}

// UserID returns the authenticated user id.
func UserID(c *gin.Context) string {
	return c.GetString(mid.CtxUserIDKey)
}
