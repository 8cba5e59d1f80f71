package middleware

import "github.com/gin-gonic/gin"

type RouteOpt struct {
	IsAuth bool
	Before []gin.HandlerFunc // run after auth, before the handler
}

// Router registers routes with the configured auth middleware in front of
// the ones that need it.
type Router struct {
	r    gin.IRoutes
	auth gin.HandlerFunc
}

func NewRouter(r gin.IRoutes, auth gin.HandlerFunc) *Router {
	return &Router{r: r, auth: auth}
}

func (rt *Router) chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	hs := make([]gin.HandlerFunc, 0, len(opt.Before)+2)
	if opt.IsAuth {
		if rt.auth == nil {
			panic("middleware: auth route registered without an auth middleware")
		}
		hs = append(hs, rt.auth)
	}
	hs = append(hs, opt.Before...)
	return append(hs, handler)
}

func (rt *Router) POST(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.POST(path, rt.chain(handler, opt)...)
}

func (rt *Router) GET(path string, handler gin.HandlerFunc, opt RouteOpt) {
	rt.r.GET(path, rt.chain(handler, opt)...)
}
