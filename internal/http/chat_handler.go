package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/service"
)

// ChatHandler mantiene dependencias para la pagina y la API de chat.
type ChatHandler struct {
	logger    *zap.Logger
	assistant *service.AssistantService
	history   service.HistoryStore
	sessions  *SessionManager
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(
	logger *zap.Logger,
	assistant *service.AssistantService,
	history service.HistoryStore,
	sessions *SessionManager,
) *ChatHandler {
	return &ChatHandler{
		logger:    logger,
		assistant: assistant,
		history:   history,
		sessions:  sessions,
	}
}

// Page maneja GET /chat.
func (h *ChatHandler) Page(c *gin.Context) {
	identity, _ := CurrentIdentity(c)
	entries, err := h.history.List(c.Request.Context(), SessionID(c))
	if err != nil {
		h.logger.Warn("load history failed", zap.Error(err))
		entries = nil
	}
	render(c, h.sessions, http.StatusOK, "chat.html", gin.H{
		"title":    "المحادثة",
		"username": identity.Username,
		"history":  entries,
	})
}

// Chat maneja POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
		return
	}

	reply, err := h.assistant.Ask(c.Request.Context(), SessionID(c), req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
			return
		}
		h.logger.Error("chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not answer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// History maneja GET /history.
func (h *ChatHandler) History(c *gin.Context) {
	entries, err := h.history.List(c.Request.Context(), SessionID(c))
	if err != nil {
		h.logger.Error("list history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// ClearHistory maneja DELETE /history.
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	if err := h.history.Clear(c.Request.Context(), SessionID(c)); err != nil {
		h.logger.Error("clear history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear history"})
		return
	}
	c.Status(http.StatusNoContent)
}
