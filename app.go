// app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/option"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	db         *gorm.DB
	cfg        = defaultConfig()
	logger     = NewNopLogger()
	backend    *BackendClient
	progress   ProgressStore = noopProgress{}
	drafts     DraftStore
	idVerifier IDTokenVerifier // nil, если Firebase не настроен

	tmplFuncs = template.FuncMap{
		// a + b
		"add": func(a, b int) int {
			return a + b
		},

		// обрезка строки
		"truncate": func(s string, n int) string {
			r := []rune(s)
			if n <= 0 || len(r) <= n {
				return s
			}
			if n <= 1 {
				return string(r[:n])
			}
			return string(r[:n-1]) + "…"
		},

		// цена курса
		"money": func(v float64) string {
			if v == 0 {
				return "Бесплатно"
			}
			return fmt.Sprintf("$%.2f", v)
		},

		// иконка Bootstrap Icons по типу урока
		"lessonIcon": func(t LessonType) string {
			switch t {
			case LessonVideo:
				return "bi-play-circle"
			case LessonDocument:
				return "bi-file-earmark-text"
			case LessonLive:
				return "bi-broadcast"
			case LessonText:
				return "bi-card-text"
			}
			return "bi-card-text"
		},
	}
)

// ---------- БД и миграции ----------

func initDB(dsn string) *gorm.DB {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect database", "error", err)
	}

	if err := autoMigrate(gormDB); err != nil {
		logger.Fatal("autoMigrate error", "error", err)
	}

	seedAccount(gormDB, cfg.AdminEmail, cfg.AdminPassword)

	return gormDB
}

func autoMigrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&User{},
		&LessonProgress{},
		&DraftRecord{},
	)
}

// авто-создание локального аккаунта по ADMIN_EMAIL / ADMIN_PASSWORD.
// Роль всё равно выдаёт бэкенд при входе.
func seedAccount(gormDB *gorm.DB, email, pass string) {
	if email == "" || pass == "" {
		logger.Info("seedAccount: ADMIN_EMAIL/ADMIN_PASSWORD не заданы, пропускаю")
		return
	}

	var cnt int64
	if err := gormDB.Model(&User{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		logger.Warn("seedAccount: ошибка проверки существования аккаунта", "error", err)
		return
	}
	if cnt > 0 {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		logger.Warn("seedAccount: ошибка хеша пароля", "error", err)
		return
	}

	user := User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Administrator",
		CreatedAt:    time.Now(),
	}
	if err := gormDB.Create(&user).Error; err != nil {
		logger.Warn("seedAccount: ошибка создания аккаунта", "error", err)
		return
	}
	logger.Info("seedAccount: создан локальный аккаунт", "uid", user.UID())
}

// ---------- хранилища ----------

func newDraftStore(c Config, gormDB *gorm.DB) DraftStore {
	switch c.DraftStore {
	case draftStorePostgres:
		return NewGormDraftStore(gormDB, c.DraftTTL)
	default:
		return NewMemoryDraftStore(c.DraftTTL)
	}
}

func newProgressStore(ctx context.Context, c Config, gormDB *gorm.DB, fbApp *firebase.App) (ProgressStore, func(), error) {
	switch c.ProgressStore {
	case progressStorePostgres:
		return NewGormProgress(gormDB), func() {}, nil
	case progressStoreRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        c.RedisAddr,
			DialTimeout: 5 * time.Second,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisProgress(rdb), func() { _ = rdb.Close() }, nil
	case progressStoreFirestore:
		if fbApp == nil {
			return nil, nil, errors.New("firestore progress store needs FIREBASE_CREDENTIALS")
		}
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		return NewFirestoreProgress(client), func() { _ = client.Close() }, nil
	default:
		return noopProgress{}, func() {}, nil
	}
}

func initFirebase(ctx context.Context, credentials string) (*firebase.App, error) {
	if credentials == "" {
		return nil, nil
	}
	return firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentials))
}

// ---------- загрузка шаблонов ----------

func mustParseFile(t *template.Template, name, path string) *template.Template {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("load template", "path", path, "error", err)
	}
	t2, err := t.New(name).Parse(string(data))
	if err != nil {
		logger.Fatal("parse template", "path", path, "error", err)
	}
	return t2
}

func loadTemplates() *template.Template {
	t := template.New("").Funcs(tmplFuncs)

	// общие куски: шапка, подвал, flash
	t = mustParseFile(t, "base.html", "templates/base.html")

	// страницы
	t = mustParseFile(t, "index.html", "templates/index.html")
	t = mustParseFile(t, "login.html", "templates/login.html")
	t = mustParseFile(t, "register.html", "templates/register.html")
	t = mustParseFile(t, "dashboard.html", "templates/dashboard.html")
	t = mustParseFile(t, "courses.html", "templates/courses.html")
	t = mustParseFile(t, "course_detail.html", "templates/course_detail.html")
	t = mustParseFile(t, "course_player.html", "templates/course_player.html")
	t = mustParseFile(t, "course_locked.html", "templates/course_locked.html")
	t = mustParseFile(t, "course_missing.html", "templates/course_missing.html")

	// кабинет преподавателя и варианты урока (там свои define)
	t = template.Must(t.ParseGlob("templates/instructor/*.html"))
	t = template.Must(t.ParseGlob("templates/lessons/*.html"))

	return t
}

// ---------- роутер ----------

func newRouter(tmpl *template.Template) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger())
	if cfg.OtelEnabled {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(MaxBodySize(cfg.MaxUploadBytes))

	r.SetHTMLTemplate(tmpl)
	r.Static("/static", "./static")

	// сессии
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   14 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("learnhub_session", store))
	r.Use(loadAuth())

	// роуты
	registerAuthRoutes(r)
	registerCourseRoutes(r)
	registerAuthorRoutes(r)

	return r
}

// ---------- main ----------

func main() {
	_ = godotenv.Load()

	loaded, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	l, err := NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger = l
	defer logger.Sync()

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := initTracing(ctx, cfg.OtelEnabled)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db = initDB(cfg.DatabaseURL)

	fbApp, err := initFirebase(ctx, cfg.FirebaseCredentials)
	if err != nil {
		logger.Fatal("firebase init", "error", err)
	}
	if fbApp != nil {
		authClient, err := fbApp.Auth(ctx)
		if err != nil {
			logger.Fatal("firebase auth client", "error", err)
		}
		idVerifier = NewFirebaseVerifier(authClient)
	}

	var closeProgress func()
	progress, closeProgress, err = newProgressStore(ctx, cfg, db, fbApp)
	if err != nil {
		logger.Fatal("progress store", "store", cfg.ProgressStore, "error", err)
	}
	defer closeProgress()

	drafts = newDraftStore(cfg, db)
	backend = NewBackendClient(cfg.BackendURL, NewJWTTokenSource(cfg.BackendJWTSecret, cfg.BackendTokenTTL))

	r := newRouter(loadTemplates())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("listening", "port", cfg.Port, "backend", cfg.BackendURL,
		"progress_store", cfg.ProgressStore, "draft_store", cfg.DraftStore)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", "error", err)
	}
}

// ---------- flash ----------

type Flash struct {
	Kind string // "success" | "warning" | "danger"
	Msg  string
}

func setFlash(c *gin.Context, kind, msg string) {
	sess := sessions.Default(c)
	sess.Set("flash_kind", kind)
	sess.Set("flash_msg", msg)
	_ = sess.Save()
}

func popFlash(c *gin.Context) *Flash {
	sess := sessions.Default(c)
	k, _ := sess.Get("flash_kind").(string)
	m, _ := sess.Get("flash_msg").(string)
	if k == "" || m == "" {
		return nil
	}
	sess.Delete("flash_kind")
	sess.Delete("flash_msg")
	_ = sess.Save()
	return &Flash{Kind: k, Msg: m}
}

// page собирает общие данные шаблона: пользователь и flash.
func page(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["User"] = getCurrentUser(c)
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = popFlash(c)
	}
	data["Path"] = c.Request.URL.Path
	return data
}

func isAPIRequest(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}
