package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yikoni/docbase/internal/middleware"
)

type RouterDeps struct {
	Documents   *DocumentHandler
	Embeddings  *EmbeddingHandler
	Collections *CollectionHandler
	JWTSecret   []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/documents", deps.Documents.Create)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.PUT("/documents/:id", deps.Documents.Update)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)
	authGroup.POST("/documents/batch-delete", deps.Documents.BatchDelete)

	authGroup.POST("/documents/:id/embedding", deps.Embeddings.Submit)
	authGroup.GET("/documents/:id/embedding", deps.Embeddings.Status)

	authGroup.POST("/collections", deps.Collections.Create)
	authGroup.GET("/collections", deps.Collections.List)
	authGroup.GET("/collections/:id/children", deps.Collections.ListChildren)
	authGroup.PUT("/collections/:id", deps.Collections.Rename)
	authGroup.DELETE("/collections/:id", deps.Collections.Delete)
	authGroup.PUT("/collections/:id/documents/:doc_id", deps.Collections.AddDocument)
	authGroup.DELETE("/collections/:id/documents/:doc_id", deps.Collections.RemoveDocument)
}
