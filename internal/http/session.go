package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabayyan/internal/domain"
	"tabayyan/internal/service"
)

const (
	sessionCookie = "sid"
	authCookie    = "auth"
	sessionTTL    = 30 * 24 * time.Hour

	sessionIDKey = "session_id"
)

// SessionManager mantiene la sesion del navegador: un id de sesion que agrupa
// historial y mensajes flash, y un JWT en cookie con la identidad (usuario o invitado).
type SessionManager struct {
	logger  *zap.Logger
	jwt     *service.JWTService
	flashes service.FlashStore
	secure  bool
}

func NewSessionManager(logger *zap.Logger, jwt *service.JWTService, flashes service.FlashStore, secure bool) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if flashes == nil {
		flashes = service.NewMemoryFlashStore()
	}
	return &SessionManager{
		logger:  logger,
		jwt:     jwt,
		flashes: flashes,
		secure:  secure,
	}
}

// Middleware asegura la cookie de sesion y carga los claims del JWT si existen.
// Un token en Authorization: Bearer tiene prioridad sobre la cookie.
func (m *SessionManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if err != nil || !validSessionID(sid) {
			sid = uuid.NewString()
			m.setCookie(c, sessionCookie, sid, sessionTTL)
		}
		c.Set(sessionIDKey, sid)

		if token := m.requestToken(c); token != "" && m.jwt != nil {
			claims, err := m.jwt.ParseAccessToken(token)
			if err == nil {
				c.Set(authClaimsKey, claims)
			} else if _, cookieErr := c.Cookie(authCookie); cookieErr == nil {
				m.clearCookie(c, authCookie)
			}
		}
		c.Next()
	}
}

func (m *SessionManager) requestToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	token, err := c.Cookie(authCookie)
	if err != nil {
		return ""
	}
	return token
}

// LogIn emite el token del usuario y lo guarda en la cookie de autenticacion.
func (m *SessionManager) LogIn(c *gin.Context, user domain.User) error {
	token, err := m.jwt.GenerateAccessToken(user)
	if err != nil {
		return err
	}
	m.setCookie(c, authCookie, token, m.jwt.AccessTTL())
	return nil
}

// LogInGuest marca la sesion como invitado.
func (m *SessionManager) LogInGuest(c *gin.Context) error {
	token, err := m.jwt.GenerateGuestToken(SessionID(c))
	if err != nil {
		return err
	}
	m.setCookie(c, authCookie, token, m.jwt.AccessTTL())
	return nil
}

// LogOut borra la identidad. El historial de la sesion se conserva.
func (m *SessionManager) LogOut(c *gin.Context) {
	m.clearCookie(c, authCookie)
	c.Set(authClaimsKey, nil)
}

func (m *SessionManager) Flash(c *gin.Context, category, message string) {
	if err := m.flashes.Add(c.Request.Context(), SessionID(c), domain.Flash{Category: category, Message: message}); err != nil {
		m.logger.Warn("store flash failed", zap.Error(err))
	}
}

func (m *SessionManager) PopFlashes(c *gin.Context) []domain.Flash {
	flashes, err := m.flashes.Pop(c.Request.Context(), SessionID(c))
	if err != nil {
		m.logger.Warn("load flashes failed", zap.Error(err))
		return nil
	}
	return flashes
}

func (m *SessionManager) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", m.secure, true)
}

func (m *SessionManager) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", m.secure, true)
}

// SessionID devuelve el id de sesion del navegador.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// CurrentIdentity devuelve los claims del usuario o invitado actual.
func CurrentIdentity(c *gin.Context) (service.Claims, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.UserID == "" {
		return service.Claims{}, false
	}
	return claims, true
}

// CurrentUser devuelve los claims solo si la sesion es de un usuario registrado.
func CurrentUser(c *gin.Context) (service.Claims, bool) {
	claims, ok := CurrentIdentity(c)
	if !ok || claims.Guest {
		return service.Claims{}, false
	}
	return claims, true
}

// RequireIdentity redirige a /login si no hay usuario ni invitado.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireLogin exige un usuario registrado.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func validSessionID(sid string) bool {
	_, err := uuid.Parse(sid)
	return err == nil
}
