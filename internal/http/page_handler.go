package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabayyan/internal/service"
)

// PageHandler sirve las paginas sin logica propia.
type PageHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	sessions *SessionManager
}

func NewPageHandler(logger *zap.Logger, userServ *service.UserService, sessions *SessionManager) *PageHandler {
	return &PageHandler{logger: logger, userServ: userServ, sessions: sessions}
}

// Landing maneja GET /. Con sesion activa lleva directo a /home.
func (h *PageHandler) Landing(c *gin.Context) {
	if _, ok := CurrentIdentity(c); ok {
		c.Redirect(http.StatusFound, "/home")
		return
	}
	render(c, h.sessions, http.StatusOK, "landing.html", gin.H{"title": "تبيّن"})
}

// Home maneja GET /home (usuarios e invitados).
func (h *PageHandler) Home(c *gin.Context) {
	render(c, h.sessions, http.StatusOK, "home.html", gin.H{"title": "الرئيسية"})
}

// Profile maneja GET /profile. Para invitados solo muestra el nombre de visitante.
func (h *PageHandler) Profile(c *gin.Context) {
	data := gin.H{"title": "الملف الشخصي"}
	if claims, ok := CurrentUser(c); ok {
		user, err := h.userServ.Get(c.Request.Context(), claims.UserID)
		switch {
		case err == nil:
			data["user"] = user
		case errors.Is(err, service.ErrUserNotFound):
			h.sessions.LogOut(c)
			c.Redirect(http.StatusFound, "/login")
			return
		default:
			h.logger.Error("load profile failed", zap.Error(err))
		}
	}
	render(c, h.sessions, http.StatusOK, "profile.html", data)
}
