package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/auth"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ---------- роли ----------

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole: всё, что не instructor/admin, считается студентом.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleInstructor:
		return RoleInstructor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStudent
	}
}

func (r Role) CanAuthor() bool {
	switch r {
	case RoleInstructor, RoleAdmin:
		return true
	case RoleStudent:
		return false
	}
	return false
}

// NeedsEnrollment — нужна ли активная запись на курс, чтобы открыть плеер.
func (r Role) NeedsEnrollment() bool {
	switch r {
	case RoleStudent:
		return true
	case RoleInstructor, RoleAdmin:
		return false
	}
	return true
}

func (r Role) Label() string {
	switch r {
	case RoleInstructor:
		return "Преподаватель"
	case RoleAdmin:
		return "Администратор"
	case RoleStudent:
		return "Студент"
	}
	return "Студент"
}

// ---------- личность и контекст авторизации ----------

type Identity struct {
	UID         string
	Email       string
	DisplayName string
	Role        Role
	Provider    string // "local" | "firebase"
}

func (i *Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}

// AuthContext собирается middleware loadAuth на каждый запрос.
type AuthContext struct {
	Identity *Identity
	Err      error
}

func (a *AuthContext) SignedIn() bool {
	return a != nil && a.Identity != nil
}

const (
	authContextKey = "auth"

	sessUID      = "uid"
	sessEmail    = "email"
	sessName     = "name"
	sessRole     = "role"
	sessProvider = "provider"
)

func loadAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		ac := &AuthContext{}
		uid, _ := sess.Get(sessUID).(string)
		if uid != "" {
			email, _ := sess.Get(sessEmail).(string)
			name, _ := sess.Get(sessName).(string)
			role, _ := sess.Get(sessRole).(string)
			provider, _ := sess.Get(sessProvider).(string)
			ac.Identity = &Identity{
				UID:         uid,
				Email:       email,
				DisplayName: name,
				Role:        ParseRole(role),
				Provider:    provider,
			}
		} else {
			ac.Err = ErrUnauthenticated
		}
		c.Set(authContextKey, ac)
		c.Next()
	}
}

func authFrom(c *gin.Context) *AuthContext {
	if v, ok := c.Get(authContextKey); ok {
		if ac, ok := v.(*AuthContext); ok {
			return ac
		}
	}
	return &AuthContext{Err: ErrUnauthenticated}
}

// getCurrentUser — nil, если посетитель не вошёл.
func getCurrentUser(c *gin.Context) *Identity {
	return authFrom(c).Identity
}

func startSession(c *gin.Context, id *Identity) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(sessUID, id.UID)
	sess.Set(sessEmail, id.Email)
	sess.Set(sessName, id.DisplayName)
	sess.Set(sessRole, string(id.Role))
	sess.Set(sessProvider, id.Provider)
	return sess.Save()
}

// signOut очищает сессию (личность, роль, состояние плееров)
// и удаляет черновики пользователя.
func signOut(c *gin.Context) {
	if id := getCurrentUser(c); id != nil {
		if err := drafts.DeleteOwner(c.Request.Context(), id.UID); err != nil {
			logger.Warn("drop drafts on sign-out", "uid", id.UID, "error", err)
		}
	}
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		logger.Warn("clear session", "error", err)
	}
	c.Set(authContextKey, &AuthContext{Err: ErrUnauthenticated})
}

// роль спрашиваем у бэкенда один раз при входе
func resolveRole(ctx context.Context, id *Identity) Role {
	role, err := backend.UserRole(ctx, id)
	if err != nil {
		logger.Warn("resolve role, falling back to student", "uid", id.UID, "error", err)
		return RoleStudent
	}
	return role
}

// ---------- middleware ----------

func authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authFrom(c).SignedIn() {
			if isAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
				return
			}
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func instructorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := getCurrentUser(c)
		if user == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		if !user.Role.CanAuthor() {
			c.String(http.StatusForbidden, "Доступно только преподавателям")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ---------- токены для бэкенда ----------

// TokenSource выдаёт bearer-токен для каждого запроса к бэкенду.
type TokenSource interface {
	Token(ctx context.Context, id *Identity) (string, error)
}

type backendClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenSource подписывает новый HS256-токен на каждый вызов, ничего не кэширует.
type JWTTokenSource struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenSource(secret string, ttl time.Duration) *JWTTokenSource {
	return &JWTTokenSource{
		secret: []byte(secret),
		issuer: serviceName,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *JWTTokenSource) Token(_ context.Context, id *Identity) (string, error) {
	if id == nil {
		return "", ErrUnauthenticated
	}
	now := s.now()
	claims := backendClaims{
		Email: id.Email,
		Role:  string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ---------- вход через Firebase ----------

type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, errors.New("empty id token")
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	email, _ := tok.Claims["email"].(string)
	name, _ := tok.Claims["name"].(string)
	return &Identity{
		UID:         tok.UID,
		Email:       email,
		DisplayName: name,
		Provider:    "firebase",
	}, nil
}
