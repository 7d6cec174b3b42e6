package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/service"
)

const defaultFAQResults = 5

// FAQHandler expone la lista de preguntas frecuentes y su busqueda.
type FAQHandler struct {
	logger   *zap.Logger
	faqs     *service.FAQService
	sessions *SessionManager
}

func NewFAQHandler(logger *zap.Logger, faqs *service.FAQService, sessions *SessionManager) *FAQHandler {
	return &FAQHandler{logger: logger, faqs: faqs, sessions: sessions}
}

// Page maneja GET /faqs; con ?q= muestra solo resultados de busqueda.
func (h *FAQHandler) Page(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	var (
		faqs []domain.FAQ
		err  error
	)
	if query != "" {
		faqs, err = h.faqs.Search(c.Request.Context(), query, defaultFAQResults)
	} else {
		faqs, err = h.faqs.List(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("load faqs failed", zap.Error(err))
		faqs = nil
	}
	render(c, h.sessions, http.StatusOK, "faqs.html", gin.H{
		"title": "الأسئلة الشائعة",
		"faqs":  faqs,
		"query": query,
	})
}

// Search maneja GET /faqs/search?q=&k=.
func (h *FAQHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	k := defaultFAQResults
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid k"})
			return
		}
		k = parsed
	}

	faqs, err := h.faqs.Search(c.Request.Context(), query, k)
	if err != nil {
		h.logger.Error("faq search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not search faqs"})
		return
	}
	if faqs == nil {
		faqs = []domain.FAQ{}
	}
	c.JSON(http.StatusOK, gin.H{"results": faqs})
}
