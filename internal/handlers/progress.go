package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/services"
)

type ProgressHandler struct {
	log         *logger.Logger
	progressSvc services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progressSvc services.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		log:         log.With("handler", "ProgressHandler"),
		progressSvc: progressSvc,
	}
}

// GET /api/documents/:id/progress
func (h *ProgressHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	progress, err := h.progressSvc.GetProgress(c.Request.Context(), userID, docID)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, progress)
}

type chaptersRequest struct {
	CompletedChapters int `json:"completed_chapters"`
}

// PUT /api/documents/:id/progress/chapters
// Reading progress is reported by the client as chapters are finished;
// it is independent of quiz grading.
func (h *ProgressHandler) SetCompletedChapters(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req chaptersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	progress, err := h.progressSvc.SetCompletedChapters(c.Request.Context(), userID, docID, req.CompletedChapters)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, progress)
}
