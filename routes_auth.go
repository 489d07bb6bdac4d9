// routes_auth.go
package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func registerAuthRoutes(r *gin.Engine) {
	// главная
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", page(c, nil))
	})

	r.GET("/register", func(c *gin.Context) {
		c.HTML(http.StatusOK, "register.html", page(c, nil))
	})
	r.POST("/register", registerHandler)

	r.GET("/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "login.html", page(c, gin.H{
			"FirebaseEnabled": idVerifier != nil,
		}))
	})
	r.POST("/login", loginHandler)

	// обмен Firebase ID-токена на сессию
	r.POST("/session", firebaseSessionHandler)

	r.GET("/logout", func(c *gin.Context) {
		signOut(c)
		c.Redirect(http.StatusFound, "/")
	})

	r.GET("/dashboard", authRequired(), dashboardHandler)
}

func registerHandler(c *gin.Context) {
	email := strings.TrimSpace(strings.ToLower(c.PostForm("email")))
	fullName := strings.TrimSpace(c.PostForm("full_name"))
	password := c.PostForm("password")
	password2 := c.PostForm("password2")

	if email == "" || password == "" {
		c.HTML(http.StatusBadRequest, "register.html", page(c, gin.H{
			"Error": "Email и пароль обязательны",
		}))
		return
	}
	if password != password2 {
		c.HTML(http.StatusBadRequest, "register.html", page(c, gin.H{
			"Error": "Пароли не совпадают",
		}))
		return
	}

	user, err := createLocalUser(email, fullName, password)
	if errors.Is(err, ErrEmailTaken) {
		c.HTML(http.StatusBadRequest, "register.html", page(c, gin.H{
			"Error": "Пользователь с таким email уже существует",
		}))
		return
	}
	if err != nil {
		logger.Error("create local user", "error", err)
		c.HTML(http.StatusInternalServerError, "register.html", page(c, gin.H{
			"Error": "Ошибка сохранения пользователя",
		}))
		return
	}

	if err := signInLocal(c, user); err != nil {
		logger.Error("start session", "error", err)
		c.String(http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

func createLocalUser(email, fullName, password string) (*User, error) {
	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		CreatedAt:    time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		// гонка двух регистраций на один email
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

func authenticateLocal(email, password string) (*User, error) {
	var user User
	if err := db.Where("email = ?", strings.TrimSpace(strings.ToLower(email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func signInLocal(c *gin.Context, user *User) error {
	id := &Identity{
		UID:         user.UID(),
		Email:       user.Email,
		DisplayName: user.FullName,
		Provider:    "local",
	}
	id.Role = resolveRole(c.Request.Context(), id)
	return startSession(c, id)
}

func loginHandler(c *gin.Context) {
	user, err := authenticateLocal(c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			logger.Error("local login", "error", err)
		}
		c.HTML(http.StatusUnauthorized, "login.html", page(c, gin.H{
			"Error":           "Неверный email или пароль",
			"FirebaseEnabled": idVerifier != nil,
		}))
		return
	}

	if err := signInLocal(c, user); err != nil {
		logger.Error("start session", "error", err)
		c.String(http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

func firebaseSessionHandler(c *gin.Context) {
	if idVerifier == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "firebase sign-in is not configured"})
		return
	}

	token := c.PostForm("id_token")
	if token == "" {
		var body struct {
			IDToken string `json:"idToken"`
		}
		_ = c.ShouldBindJSON(&body)
		token = body.IDToken
	}

	id, err := idVerifier.Verify(c.Request.Context(), token)
	if err != nil {
		logger.Warn("verify id token", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
		return
	}
	id.Role = resolveRole(c.Request.Context(), id)

	if err := startSession(c, id); err != nil {
		logger.Error("start session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "role": id.Role, "redirect": "/dashboard"})
}

func dashboardHandler(c *gin.Context) {
	user := getCurrentUser(c)
	data := gin.H{}

	// в кабинете преподавателя сразу показываем его курсы
	switch user.Role {
	case RoleInstructor, RoleAdmin:
		courses, err := backend.InstructorCourses(c.Request.Context(), user)
		if err != nil {
			logger.Warn("load instructor courses", "uid", user.UID, "error", err)
		}
		data["InstructorCourses"] = courses
	case RoleStudent:
	}

	c.HTML(http.StatusOK, "dashboard.html", page(c, data))
}
