package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yikoni/docbase/internal/model"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/errcode"
	"github.com/yikoni/docbase/internal/pkg/response"
	"github.com/yikoni/docbase/internal/repo"
	"github.com/yikoni/docbase/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
	cleanup   *service.CleanupService
}

func NewDocumentHandler(documents *service.DocumentService, cleanup *service.CleanupService) *DocumentHandler {
	return &DocumentHandler{documents: documents, cleanup: cleanup}
}

type createDocumentRequest struct {
	Title           string `json:"title"`
	Content         string `json:"content"`
	Category        string `json:"category"`
	FileType        string `json:"file_type"`
	StorageKey      string `json:"storage_key"`
	StorageProvider string `json:"storage_provider"`
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.documents.Create(c.Request.Context(), getUserID(c), service.CreateDocumentArgs{
		Title:           req.Title,
		Content:         req.Content,
		Category:        model.Category(req.Category),
		FileType:        req.FileType,
		StorageKey:      req.StorageKey,
		StorageProvider: req.StorageProvider,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	docID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	query := repo.ListDocumentsQuery{
		Category: model.Category(c.Query("category")),
		Search:   c.Query("q"),
	}
	if value := c.Query("collection_id"); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			handleError(c, appErr.ErrInvalid)
			return
		}
		query.CollectionID = id
	}
	if value := c.Query("page"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			query.Page = parsed
		}
	}
	if value := c.Query("page_size"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			query.PageSize = parsed
		}
	}
	page, err := h.documents.List(c.Request.Context(), getUserID(c), query)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, page)
}

type updateDocumentRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`
	FileType *string `json:"file_type"`
}

func (h *DocumentHandler) Update(c *gin.Context) {
	docID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	patch := repo.DocumentPatch{
		Title:    req.Title,
		Content:  req.Content,
		FileType: req.FileType,
	}
	if req.Category != nil {
		category := model.Category(*req.Category)
		patch.Category = &category
	}
	doc, err := h.documents.Update(c.Request.Context(), getUserID(c), docID, patch)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, err := pathID(c, "id")
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.cleanup.DeleteDocument(c.Request.Context(), getUserID(c), docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type batchDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *DocumentHandler) BatchDelete(c *gin.Context) {
	var req batchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len(req.IDs) == 0 {
		response.Error(c, errcode.ErrInvalid, "ids required")
		return
	}
	result, err := h.cleanup.DeleteDocuments(c.Request.Context(), getUserID(c), req.IDs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
