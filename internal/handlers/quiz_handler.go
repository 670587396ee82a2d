package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/chingu-voyage4/Bears-Team-0/internal/service"
	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	Service *service.QuizService
}

func NewQuizHandler(s *service.QuizService) *QuizHandler {
	return &QuizHandler{Service: s}
}

type createQuizRequest struct {
	Quiz *models.QuizInput `json:"quiz"`
}

type favoritesRequest struct {
	Delta any `json:"delta"`
}

type attemptRequest struct {
	QuestionIndex *int   `json:"questionIndex"`
	Answer        string `json:"answer"`
}

func badRequest(field, reason string) error {
	return &models.FieldError{Field: field, Reason: reason, Err: models.ErrValidation}
}

func (h *QuizHandler) CountQuizzes(c *gin.Context) {
	count, err := h.Service.CountQuizzes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, count)
}

func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.Service.ListQuizzes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quizzes)
}

func (h *QuizHandler) PopularQuizzes(c *gin.Context) {
	quizzes, err := h.Service.PopularQuizzes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quizzes)
}

func (h *QuizHandler) AuthorQuizzes(c *gin.Context) {
	quizzes, err := h.Service.ListUserQuizzes(c.Request.Context(), c.Param("authorId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quizzes)
}

// MyQuizzes lists the quizzes written by the authenticated caller.
func (h *QuizHandler) MyQuizzes(c *gin.Context) {
	quizzes, err := h.Service.ListUserQuizzes(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quizzes)
}

func (h *QuizHandler) GetQuiz(c *gin.Context) {
	quiz, err := h.Service.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quiz)
}

func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}
	if req.Quiz == nil {
		respondError(c, badRequest("quiz", "is required"))
		return
	}

	quiz, err := h.Service.CreateQuiz(c.Request.Context(), callerID(c), *req.Quiz)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, quiz)
}

func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}

	quiz, err := h.Service.UpdateQuiz(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quiz)
}

func (h *QuizHandler) UpdateFavorites(c *gin.Context) {
	var req favoritesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}
	delta, err := parseDelta(req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}

	quiz, err := h.Service.UpdateFavorites(c.Request.Context(), c.Param("id"), delta)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quiz)
}

// parseDelta accepts the delta as a decimal string, the form the web
// client sends, or as a JSON integer.
func parseDelta(raw any) (int, error) {
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return 0, badRequest("delta", fmt.Sprintf("%q is not an integer between %d and %d", v, math.MinInt32, math.MaxInt32))
		}
		return int(n), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, badRequest("delta", fmt.Sprintf("must be an integer between %d and %d", math.MinInt32, math.MaxInt32))
		}
		return int(v), nil
	case nil:
		return 0, badRequest("delta", "is required")
	}
	return 0, badRequest("delta", "must be an integer")
}

func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	quiz, err := h.Service.DeleteQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, quiz)
}

func (h *QuizHandler) AddQuestion(c *gin.Context) {
	var question models.Question
	if err := c.ShouldBindJSON(&question); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}

	quiz, err := h.Service.AddQuestion(c.Request.Context(), c.Param("id"), question)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, quiz)
}

func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	var req attemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("body", err.Error()))
		return
	}
	if req.QuestionIndex == nil {
		respondError(c, badRequest("questionIndex", "is required"))
		return
	}

	quiz, correct, err := h.Service.SubmitAnswer(c.Request.Context(), c.Param("id"), *req.QuestionIndex, req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"correct": correct, "quiz": quiz})
}
