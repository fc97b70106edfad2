package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/requestdata"
	"github.com/studyforge/studyforge-backend/internal/services"
)

type DocumentHandler struct {
	log    *logger.Logger
	docSvc services.DocumentService
}

func NewDocumentHandler(log *logger.Logger, docSvc services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		log:    log.With("handler", "DocumentHandler"),
		docSvc: docSvc,
	}
}

// POST /api/documents
// Multipart upload; the document is vectorized before the call returns.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	doc, err := h.docSvc.Upload(c.Request.Context(), userID,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docs, err := h.docSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, docs)
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	doc, err := h.docSvc.Get(c.Request.Context(), userID, docID)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, doc)
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

// POST /api/documents/:id/ask
func (h *DocumentHandler) Ask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	answer, err := h.docSvc.Ask(c.Request.Context(), userID, docID, req.Question)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"answer": answer})
}

// GET /api/documents/:id/summary
func (h *DocumentHandler) Summarize(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	summary, err := h.docSvc.Summarize(c.Request.Context(), userID, docID)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"summary": summary})
}

// currentUserID pulls the authenticated user from the request context.
// The auth middleware guarantees it for protected routes.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingIdentity)
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}
