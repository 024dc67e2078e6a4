package node

import "github.com/gin-gonic/gin"

// Node is an HTTP-serving process component.
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
	RegisterRoutes()
}
