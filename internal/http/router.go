package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabayyan/internal/metrics"
	"tabayyan/internal/service"
)

// RouterDeps agrupa handlers y middlewares compartidos.
type RouterDeps struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Sessions *SessionManager
	JWT      *service.JWTService
	Limiter  service.RateLimiter

	// TrustedProxies lista las IPs/CIDRs cuyos X-Forwarded-For se aceptan. Vacio: ninguno.
	TrustedProxies []string

	Pages    *PageHandler
	Auth     *AuthHandler
	Chat     *ChatHandler
	Voice    *VoiceHandler
	Feedback *FeedbackHandler
	FAQ      *FAQHandler
	Ops      *OpsHandler
}

// NewRouter configura el router de Gin con middlewares, paginas y APIs.
func NewRouter(d RouterDeps) (*gin.Engine, error) {
	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	// Middlewares basicos: logging, recovery, metricas y sesion.
	r.Use(zapLoggerMiddleware(d.Logger), gin.Recovery(), metricsMiddleware(d.Metrics))
	r.StaticFS("/static", staticFileSystem())

	r.GET("/healthz", d.Ops.Health)
	r.GET("/metrics", d.Ops.Metrics())

	web := r.Group("/", d.Sessions.Middleware())
	web.GET("/", d.Pages.Landing)
	web.GET("/login", d.Auth.LoginPage)
	web.POST("/login", d.Auth.Login)
	web.GET("/register", d.Auth.RegisterPage)
	web.POST("/register", d.Auth.Register)
	web.GET("/guest-login", d.Auth.GuestLoginPage)
	web.POST("/guest-login", d.Auth.GuestLogin)
	web.GET("/logout", d.Auth.Logout)
	web.GET("/reset-password", d.Auth.ResetPasswordPage)
	web.POST("/reset-password", d.Auth.RequestReset)
	web.GET("/reset-password/:token", d.Auth.ResetConfirmPage)
	web.POST("/reset-password/:token", d.Auth.ResetConfirm)
	web.GET("/faqs", d.FAQ.Page)
	web.GET("/faqs/search", jsonContentTypeMiddleware(), d.FAQ.Search)

	limited := rateLimitMiddleware(d.Limiter)
	web.GET("/chat", d.Chat.Page)
	web.POST("/chat", limited, jsonContentTypeMiddleware(), d.Chat.Chat)
	web.GET("/history", jsonContentTypeMiddleware(), d.Chat.History)
	web.DELETE("/history", d.Chat.ClearHistory)
	web.POST("/rate-answer", jsonContentTypeMiddleware(), d.Feedback.RateAnswer)
	// Las rutas de audio no fuerzan JSON: la respuesta exitosa es audio/mpeg.
	web.POST("/voice-to-text", limited, d.Voice.VoiceToText)
	web.POST("/text-to-speech", limited, d.Voice.TextToSpeech)

	member := web.Group("", RequireIdentity())
	member.GET("/home", d.Pages.Home)
	member.GET("/profile", d.Pages.Profile)

	registered := web.Group("", RequireLogin())
	registered.POST("/delete-account", d.Auth.DeleteAccount)
	registered.GET("/contact-staff", d.Feedback.StaffPage)
	registered.POST("/contact-staff", d.Feedback.ContactStaff)

	api := r.Group("/api", jsonContentTypeMiddleware())
	api.POST("/auth/login", d.Auth.APILogin)
	api.POST("/auth/refresh", d.Auth.APIRefresh)
	api.POST("/auth/logout", d.Auth.APILogout)
	api.GET("/me", JWTAuthMiddleware(d.JWT), d.Auth.Me)

	return r, nil
}
