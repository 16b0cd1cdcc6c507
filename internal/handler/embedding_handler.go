package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yikoni/docbase/internal/pkg/response"
	"github.com/yikoni/docbase/internal/service"
)

type EmbeddingHandler struct {
	embeddings *service.EmbeddingService
}

func NewEmbeddingHandler(embeddings *service.EmbeddingService) *EmbeddingHandler {
	return &EmbeddingHandler{embeddings: embeddings}
}

func (h *EmbeddingHandler) Submit(c *gin.Context) {
	docID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	force := c.Query("force") == "true" || c.Query("force") == "1"
	jobID, err := h.embeddings.Submit(c.Request.Context(), getUserID(c), docID, force)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"job_id": jobID})
}

func (h *EmbeddingHandler) Status(c *gin.Context) {
	docID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	info, err := h.embeddings.GetStatus(c.Request.Context(), getUserID(c), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, info)
}
