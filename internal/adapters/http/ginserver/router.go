package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter mounts the sink endpoints behind gin.Recovery and the given
// middlewares, in order. Unknown routes and methods answer with the same
// JSON error body as the handlers.
func NewRouter(h *Handler, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(middlewares...)

	r.NoRoute(func(c *gin.Context) { writeError(c, http.StatusNotFound, "no such endpoint") })
	r.NoMethod(func(c *gin.Context) { writeError(c, http.StatusMethodNotAllowed, "method not allowed") })

	write := r.Group("")
	write.POST("/write", h.WriteLines)
	write.POST("/db/:db/series", h.WriteSeries)

	read := r.Group("")
	read.GET("/", h.Index)
	read.GET("/series", h.SeriesJSON)
	read.GET("/series/:db/:measurement", h.LastPoint)
	read.Match([]string{http.MethodGet, http.MethodHead}, "/ping", h.Ping)

	return r
}
