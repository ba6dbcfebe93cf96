package httputil

import "github.com/gin-gonic/gin"

// Handler is one mounted route group under the versioned API prefix.
type Handler interface {
	Root() string
	SetRoutes(g *gin.RouterGroup)
}
