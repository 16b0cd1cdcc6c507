package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yikoni/docbase/internal/pkg/errcode"
	"github.com/yikoni/docbase/internal/pkg/response"
	"github.com/yikoni/docbase/internal/service"
)

type CollectionHandler struct {
	collections *service.CollectionService
}

func NewCollectionHandler(collections *service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections}
}

type createCollectionRequest struct {
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
	OrderIdx int    `json:"order_idx"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
}

func (h *CollectionHandler) Create(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	col, err := h.collections.Create(c.Request.Context(), getUserID(c), service.CreateCollectionArgs{
		Name:     req.Name,
		ParentID: req.ParentID,
		OrderIdx: req.OrderIdx,
		Color:    req.Color,
		Icon:     req.Icon,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, col)
}

type renameCollectionRequest struct {
	Name string `json:"name"`
}

func (h *CollectionHandler) Rename(c *gin.Context) {
	colID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	var req renameCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.collections.Rename(c.Request.Context(), getUserID(c), colID, req.Name); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	colID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.collections.Delete(c.Request.Context(), getUserID(c), colID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *CollectionHandler) List(c *gin.Context) {
	cols, err := h.collections.ListRoots(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cols)
}

func (h *CollectionHandler) ListChildren(c *gin.Context) {
	colID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	cols, err := h.collections.ListChildren(c.Request.Context(), getUserID(c), colID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cols)
}

func (h *CollectionHandler) AddDocument(c *gin.Context) {
	colID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	docID, err := pathID(c, "doc_id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.collections.AddDocument(c.Request.Context(), getUserID(c), colID, docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *CollectionHandler) RemoveDocument(c *gin.Context) {
	colID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	docID, err := pathID(c, "doc_id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.collections.RemoveDocument(c.Request.Context(), getUserID(c), colID, docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
