package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyforge/studyforge-backend/internal/logger"
	"github.com/studyforge/studyforge-backend/internal/services"
)

type QuizHandler struct {
	log     *logger.Logger
	quizSvc services.QuizService
}

func NewQuizHandler(log *logger.Logger, quizSvc services.QuizService) *QuizHandler {
	return &QuizHandler{
		log:     log.With("handler", "QuizHandler"),
		quizSvc: quizSvc,
	}
}

type generateQuizRequest struct {
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

// POST /api/documents/:id/quiz
// Generate the next quiz batch for a document.
func (h *QuizHandler) Generate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req generateQuizRequest
	// The request body is optional; defaults apply when it is absent.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	batch, items, err := h.quizSvc.GenerateBatch(c.Request.Context(), userID, docID, req.Count, req.Difficulty)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"batch_number": batch,
		"items":        items,
	})
}

// GET /api/documents/:id/quiz?batch=N
// Items of a batch; latest batch when the parameter is omitted.
func (h *QuizHandler) Items(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	batch, ok := optionalBatchParam(c)
	if !ok {
		return
	}
	items, resolved, err := h.quizSvc.ItemsForBatch(c.Request.Context(), userID, docID, batch)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{
		"batch_number": resolved,
		"items":        items,
	})
}

type gradeQuizRequest struct {
	Batch   *int              `json:"batch"`
	Answers map[string]string `json:"answers" binding:"required"`
	UseAI   bool              `json:"use_ai"`
}

// POST /api/documents/:id/quiz/grade
func (h *QuizHandler) Grade(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req gradeQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.quizSvc.GradeBatch(c.Request.Context(), userID, docID, req.Batch, req.Answers, req.UseAI)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/documents/:id/attempts?batch=N
func (h *QuizHandler) ListAttempts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	batch, ok := optionalBatchParam(c)
	if !ok {
		return
	}
	attempts, err := h.quizSvc.ListAttempts(c.Request.Context(), userID, docID, batch)
	if err != nil {
		RespondFromError(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"attempts": attempts})
}

func optionalBatchParam(c *gin.Context) (*int, bool) {
	raw := c.Query("batch")
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_batch_param", err)
		return nil, false
	}
	return &n, true
}
