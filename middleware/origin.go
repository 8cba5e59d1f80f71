package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/affanraza84/Chatting-App/logger"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OriginPolicy allows exact origins and origins matching a pattern.
// Requests without an Origin header are allowed.
type OriginPolicy struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

func NewOriginPolicy(origins, patterns []string) (*OriginPolicy, error) {
	p := &OriginPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			p.exact[o] = struct{}{}
		}
	}
	for _, s := range patterns {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad origin pattern", "pattern", s, "err", err.Error())
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// CheckOrigin is the websocket upgrader hook.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	ok := p.Allowed(r.Header.Get("Origin"))
	if !ok {
		logger.Warn("[HTTP] websocket origin blocked", zap.String("origin", r.Header.Get("Origin")))
	}
	return ok
}

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, Cookie, x-auth-token"
)

// Origin is the CORS middleware. Credentials are allowed, so the allowed
// origin is echoed back rather than "*".
func Origin(p *OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if !p.Allowed(origin) {
				logger.Warn("[HTTP] CORS blocked origin", zap.String("origin", origin), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusForbidden, errs.Envelope{
					Success: false, Message: "Not allowed by CORS", Error: "CORS_ERROR",
				})
				return
			}
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", "set-cookie")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
