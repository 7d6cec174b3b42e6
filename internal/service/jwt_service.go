package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tabayyan/internal/domain"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
	tokenReset   = "reset"

	guestIDPrefix = "guest:"
	resetTTL      = 30 * time.Minute
)

// JWTService emite y valida tokens JWT para la cookie de sesion, la API y el reset de password.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	store      RefreshTokenStore
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Claims struct {
	UserID    string `json:"uid"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Guest     bool   `json:"guest,omitempty"`
	TokenType string `json:"typ"`
	// PasswordTag invalida un token de reset una vez cambiada la password.
	PasswordTag string `json:"pwd,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     "tabayyan",
		store:      NewMemoryRefreshTokenStore(),
	}
}

func NewJWTServiceWithStore(secret string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) *JWTService {
	svc := NewJWTService(secret, accessTTL, refreshTTL)
	if store != nil {
		svc.store = store
	}
	return svc
}

func (s *JWTService) AccessTTL() time.Duration { return s.accessTTL }

// IsGuestID indica si el id de usuario corresponde a una sesion de invitado.
func IsGuestID(userID string) bool {
	return strings.HasPrefix(userID, guestIDPrefix)
}

func (s *JWTService) GeneratePair(user domain.User) (TokenPair, error) {
	if len(s.secret) == 0 {
		return TokenPair{}, ErrJWTInvalid
	}
	now := time.Now().UTC()
	access, err := s.sign(s.userClaims(user, tokenAccess), now, s.accessTTL, "")
	if err != nil {
		return TokenPair{}, err
	}
	jti := uuid.NewString()
	refresh, err := s.sign(s.userClaims(user, tokenRefresh), now, s.refreshTTL, jti)
	if err != nil {
		return TokenPair{}, err
	}
	if s.store != nil {
		if err := s.store.Store(jti, user.ID, s.refreshTTL); err != nil {
			return TokenPair{}, err
		}
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// GenerateAccessToken firma solo el token de acceso; lo usa la cookie de sesion.
func (s *JWTService) GenerateAccessToken(user domain.User) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	return s.sign(s.userClaims(user, tokenAccess), time.Now().UTC(), s.accessTTL, "")
}

// GenerateGuestToken emite un token de acceso para un invitado ligado a la sesion del navegador.
func (s *JWTService) GenerateGuestToken(sessionID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(sessionID) == "" {
		return "", ErrJWTInvalid
	}
	claims := Claims{
		UserID:    guestIDPrefix + sessionID,
		Username:  domain.GuestName,
		Guest:     true,
		TokenType: tokenAccess,
	}
	return s.sign(claims, time.Now().UTC(), s.accessTTL, "")
}

func (s *JWTService) RefreshPair(refreshToken string) (TokenPair, error) {
	claims, err := s.parseTyped(refreshToken, tokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.Guest || claims.ID == "" || s.store == nil {
		return TokenPair{}, ErrJWTInvalid
	}
	ok, err := s.store.Exists(claims.ID)
	if err != nil || !ok {
		return TokenPair{}, ErrJWTInvalid
	}
	if err := s.store.Revoke(claims.ID); err != nil {
		return TokenPair{}, ErrJWTInvalid
	}
	return s.GeneratePair(domain.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
	})
}

func (s *JWTService) RevokeRefresh(refreshToken string) error {
	claims, err := s.parseTyped(refreshToken, tokenRefresh)
	if err != nil {
		return err
	}
	if claims.ID == "" || s.store == nil {
		return ErrJWTInvalid
	}
	return s.store.Revoke(claims.ID)
}

func (s *JWTService) ParseAccessToken(accessToken string) (Claims, error) {
	return s.parseTyped(accessToken, tokenAccess)
}

// GenerateResetToken emite un token de reset de password de corta duracion.
func (s *JWTService) GenerateResetToken(user domain.User) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrJWTInvalid
	}
	now := time.Now().UTC()
	claims := s.userClaims(user, tokenReset)
	claims.PasswordTag = passwordTag(user.PasswordHash)
	signed, err := s.sign(claims, now, resetTTL, uuid.NewString())
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, now.Add(resetTTL), nil
}

// ParseResetToken valida firma y tipo. El llamador compara PasswordTag con la password actual.
func (s *JWTService) ParseResetToken(token string) (Claims, error) {
	return s.parseTyped(token, tokenReset)
}

// MatchesPassword indica si el token se emitio para el hash de password actual.
func (c Claims) MatchesPassword(passwordHash string) bool {
	return c.PasswordTag != "" && c.PasswordTag == passwordTag(passwordHash)
}

func (s *JWTService) userClaims(user domain.User, tokenType string) Claims {
	return Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		TokenType: tokenType,
	}
}

func (s *JWTService) sign(claims Claims, now time.Time, ttl time.Duration, jti string) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    s.issuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) parseTyped(tokenString, tokenType string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenType {
		return Claims{}, ErrJWTInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	if claims.Guest != IsGuestID(claims.UserID) {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}

func passwordTag(hash string) string {
	if hash == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// RandomSecret genera un secreto efimero para cuando JWT_SECRET no esta configurado.
func RandomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
