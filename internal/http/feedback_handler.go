package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/service"
)

const (
	msgStaffSent    = "تم إرسال سؤالك للموظفين"
	msgStaffInvalid = "يرجى كتابة السؤال"
)

// FeedbackHandler agrupa calificaciones de respuestas y preguntas al personal.
type FeedbackHandler struct {
	logger   *zap.Logger
	ratings  *service.RatingService
	staff    *service.StaffService
	userServ *service.UserService
	sessions *SessionManager
}

func NewFeedbackHandler(
	logger *zap.Logger,
	ratings *service.RatingService,
	staff *service.StaffService,
	userServ *service.UserService,
	sessions *SessionManager,
) *FeedbackHandler {
	return &FeedbackHandler{
		logger:   logger,
		ratings:  ratings,
		staff:    staff,
		userServ: userServ,
		sessions: sessions,
	}
}

// RateAnswer maneja POST /rate-answer.
func (h *FeedbackHandler) RateAnswer(c *gin.Context) {
	var req struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Score    int    `json:"score"`
		Comment  string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	identity, _ := CurrentIdentity(c)
	_, err := h.ratings.Rate(c.Request.Context(), service.RateInput{
		UserID:    identity.UserID,
		SessionID: SessionID(c),
		Question:  req.Question,
		Answer:    req.Answer,
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		if errors.Is(err, service.ErrRatingInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rating"})
			return
		}
		h.logger.Error("store rating failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store rating"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Rating received"})
}

// StaffPage maneja GET /contact-staff.
func (h *FeedbackHandler) StaffPage(c *gin.Context) {
	render(c, h.sessions, http.StatusOK, "staff_question.html", gin.H{"title": "اسأل الموظفين"})
}

// ContactStaff maneja POST /contact-staff.
func (h *FeedbackHandler) ContactStaff(c *gin.Context) {
	claims, _ := CurrentUser(c)
	subject := c.PostForm("subject")
	question := c.PostForm("question")

	user, err := h.userServ.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("load user for staff question failed", zap.Error(err))
		h.sessions.Flash(c, domain.FlashError, msgTryLater)
		c.Redirect(http.StatusFound, "/contact-staff")
		return
	}

	if _, err := h.staff.Submit(c.Request.Context(), user, subject, question); err != nil {
		if errors.Is(err, service.ErrStaffQuestionInvalid) {
			h.sessions.Flash(c, domain.FlashError, msgStaffInvalid)
			render(c, h.sessions, http.StatusOK, "staff_question.html", gin.H{
				"title":    "اسأل الموظفين",
				"subject":  subject,
				"question": question,
			})
			return
		}
		h.logger.Error("submit staff question failed", zap.Error(err))
		h.sessions.Flash(c, domain.FlashError, msgTryLater)
		c.Redirect(http.StatusFound, "/contact-staff")
		return
	}
	h.sessions.Flash(c, domain.FlashSuccess, msgStaffSent)
	c.Redirect(http.StatusFound, "/home")
}
