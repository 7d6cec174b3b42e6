package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/service"
)

// Mensajes mostrados al usuario.
const (
	msgInvalidLogin    = "اسم المستخدم أو كلمة المرور غير صحيحة"
	msgUsernameTaken   = "اسم المستخدم موجود بالفعل"
	msgEmailTaken      = "البريد الإلكتروني مسجل بالفعل"
	msgInvalidUsername = "اسم المستخدم غير صالح"
	msgInvalidEmail    = "البريد الإلكتروني غير صالح"
	msgWeakPassword    = "كلمة المرور يجب أن تكون 6 أحرف على الأقل"
	msgResetSent       = "تم إرسال رابط إعادة تعيين كلمة المرور إلى بريدك الإلكتروني"
	msgResetDone       = "تم تغيير كلمة المرور بنجاح"
	msgResetInvalid    = "رابط إعادة التعيين غير صالح أو منتهي"
	msgAccountDeleted  = "تم حذف الحساب بنجاح"
	msgTryLater        = "حدث خطأ، يرجى المحاولة لاحقاً"
)

// AuthHandler maneja registro, login (paginas y API), invitados y reset de password.
type AuthHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
	sessions *SessionManager
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService, sessions *SessionManager) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
		sessions: sessions,
	}
}

// LoginPage maneja GET /login.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	render(c, h.sessions, http.StatusOK, "login.html", gin.H{"title": "تسجيل الدخول"})
}

// Login maneja POST /login. identifier acepta username o email.
func (h *AuthHandler) Login(c *gin.Context) {
	identifier := c.PostForm("identifier")
	user, err := h.userServ.Authenticate(c.Request.Context(), identifier, c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Error("login failed", zap.Error(err))
		}
		h.sessions.Flash(c, domain.FlashError, msgInvalidLogin)
		render(c, h.sessions, http.StatusOK, "login.html", gin.H{"title": "تسجيل الدخول", "identifier": identifier})
		return
	}
	if err := h.sessions.LogIn(c, user); err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		h.sessions.Flash(c, domain.FlashError, msgTryLater)
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.Redirect(http.StatusFound, "/home")
}

// RegisterPage maneja GET /register.
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	render(c, h.sessions, http.StatusOK, "register.html", gin.H{"title": "إنشاء حساب"})
}

// Register maneja POST /register.
func (h *AuthHandler) Register(c *gin.Context) {
	input := service.RegisterInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}
	user, err := h.userServ.Register(c.Request.Context(), input)
	if err != nil {
		msg := msgTryLater
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			msg = msgUsernameTaken
		case errors.Is(err, service.ErrEmailTaken):
			msg = msgEmailTaken
		case errors.Is(err, service.ErrInvalidUsername):
			msg = msgInvalidUsername
		case errors.Is(err, service.ErrInvalidEmail):
			msg = msgInvalidEmail
		case errors.Is(err, service.ErrWeakPassword):
			msg = msgWeakPassword
		default:
			h.logger.Error("register failed", zap.Error(err))
		}
		h.sessions.Flash(c, domain.FlashError, msg)
		render(c, h.sessions, http.StatusOK, "register.html", gin.H{
			"title":    "إنشاء حساب",
			"username": input.Username,
			"email":    input.Email,
		})
		return
	}
	if err := h.sessions.LogIn(c, user); err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.Redirect(http.StatusFound, "/home")
}

// GuestLoginPage maneja GET /guest-login.
func (h *AuthHandler) GuestLoginPage(c *gin.Context) {
	render(c, h.sessions, http.StatusOK, "guest_login.html", gin.H{"title": "الدخول كزائر"})
}

// GuestLogin maneja POST /guest-login.
func (h *AuthHandler) GuestLogin(c *gin.Context) {
	if err := h.sessions.LogInGuest(c); err != nil {
		h.logger.Error("guest token failed", zap.Error(err))
		h.sessions.Flash(c, domain.FlashError, msgTryLater)
		c.Redirect(http.StatusFound, "/guest-login")
		return
	}
	c.Redirect(http.StatusFound, "/home")
}

// Logout maneja GET /logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.LogOut(c)
	c.Redirect(http.StatusFound, "/")
}

// ResetPasswordPage maneja GET /reset-password.
func (h *AuthHandler) ResetPasswordPage(c *gin.Context) {
	render(c, h.sessions, http.StatusOK, "reset_password.html", gin.H{"title": "إعادة تعيين كلمة المرور"})
}

// RequestReset maneja POST /reset-password. El mensaje es el mismo exista o no la cuenta.
func (h *AuthHandler) RequestReset(c *gin.Context) {
	err := h.userServ.RequestPasswordReset(c.Request.Context(), c.PostForm("email"))
	if err != nil && !errors.Is(err, service.ErrInvalidEmail) && !errors.Is(err, service.ErrRateLimited) {
		h.logger.Warn("password reset request failed", zap.Error(err))
	}
	h.sessions.Flash(c, domain.FlashInfo, msgResetSent)
	c.Redirect(http.StatusFound, "/login")
}

// ResetConfirmPage maneja GET /reset-password/:token.
func (h *AuthHandler) ResetConfirmPage(c *gin.Context) {
	render(c, h.sessions, http.StatusOK, "reset_confirm.html", gin.H{
		"title": "كلمة مرور جديدة",
		"token": c.Param("token"),
	})
}

// ResetConfirm maneja POST /reset-password/:token.
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	token := c.Param("token")
	err := h.userServ.ResetPassword(c.Request.Context(), token, c.PostForm("password"))
	switch {
	case err == nil:
		h.sessions.Flash(c, domain.FlashSuccess, msgResetDone)
		c.Redirect(http.StatusFound, "/login")
	case errors.Is(err, service.ErrWeakPassword):
		h.sessions.Flash(c, domain.FlashError, msgWeakPassword)
		c.Redirect(http.StatusFound, "/reset-password/"+token)
	case errors.Is(err, service.ErrResetTokenInvalid):
		h.sessions.Flash(c, domain.FlashError, msgResetInvalid)
		c.Redirect(http.StatusFound, "/reset-password")
	default:
		h.logger.Error("password reset failed", zap.Error(err))
		h.sessions.Flash(c, domain.FlashError, msgTryLater)
		c.Redirect(http.StatusFound, "/reset-password")
	}
}

// DeleteAccount maneja POST /delete-account.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	claims, _ := CurrentUser(c)
	if err := h.userServ.Delete(c.Request.Context(), claims.UserID); err != nil && !errors.Is(err, service.ErrUserNotFound) {
		h.logger.Error("delete account failed", zap.Error(err))
		h.sessions.Flash(c, domain.FlashError, msgTryLater)
		c.Redirect(http.StatusFound, "/profile")
		return
	}
	h.sessions.LogOut(c)
	h.sessions.Flash(c, domain.FlashSuccess, msgAccountDeleted)
	c.Redirect(http.StatusFound, "/")
}

// APILogin maneja POST /api/auth/login.
func (h *AuthHandler) APILogin(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier" binding:"required"`
		Password   string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// APIRefresh maneja POST /api/auth/refresh.
func (h *AuthHandler) APIRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	tokens, err := h.jwtServ.RefreshPair(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// APILogout maneja POST /api/auth/logout.
func (h *AuthHandler) APILogout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	_ = h.jwtServ.RevokeRefresh(req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// Me maneja GET /api/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	user, err := h.userServ.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("get user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) issueTokens(user domain.User) (service.TokenPair, error) {
	if h.jwtServ == nil {
		return service.TokenPair{}, errors.New("jwt not configured")
	}
	return h.jwtServ.GeneratePair(user)
}
