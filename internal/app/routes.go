package app

import (
	"net/http"

	"github.com/dordunu1/taskboard/internal/auth"
	"github.com/dordunu1/taskboard/internal/blob"
	"github.com/dordunu1/taskboard/internal/cache"
	"github.com/dordunu1/taskboard/internal/config"
	"github.com/dordunu1/taskboard/internal/feed"
	"github.com/dordunu1/taskboard/internal/handlers"
	"github.com/dordunu1/taskboard/internal/repo"
	"github.com/dordunu1/taskboard/internal/service"
	"github.com/dordunu1/taskboard/internal/tasksync"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

const localFilesPath = "/files"

// deps are the long-lived pieces New builds before routing.
type deps struct {
	db       *pgxpool.Pool
	rdb      *redis.Client
	tasks    repo.TaskRepo
	store    blob.Store
	hub      *feed.Hub
	boards   *tasksync.Manager
	sessions *auth.Store
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, cfg config.Config, d deps) error {
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg, d))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(302, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))
	if local, ok := d.store.(*blob.LocalStore); ok {
		r.Static(localFilesPath, local.Dir())
	}

	api := r.Group("/api/v1")

	userRepo := repo.NewPGUserRepo(d.db)
	tokens, err := auth.NewResetTokens(d.rdb, cfg.Auth.ResetSecret, cfg.Auth.ResetTokenTTL.Duration())
	if err != nil {
		return err
	}
	reset := &service.PasswordReset{Tokens: tokens, Mailer: newMailer(cfg.Mail), URL: cfg.Auth.ResetURL}
	userSvc := service.NewUserService(userRepo, reset)

	var google handlers.GoogleFlow
	if cfg.OAuth.Enabled() {
		google = auth.NewGoogle(d.rdb, cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleRedirectURL)
	}
	authHandler := handlers.NewAuthHandler(d.sessions, userSvc, d.boards, google, handlers.AuthOptions{
		CookieSecure:    cfg.Auth.CookieSecure,
		SuccessRedirect: cfg.OAuth.SuccessRedirect,
	})
	requireSession := auth.RequireSession(d.sessions)
	registerAuthRoutes(api, authHandler, requireSession)

	protected := api.Group("", requireSession)

	taskSvc := service.NewTaskService(d.tasks)
	uploadSvc := service.NewAttachmentService(d.store, d.tasks, cfg.Upload.MaxBytes)
	registerTaskRoutes(protected, handlers.NewTaskHandler(taskSvc, uploadSvc))

	commentRepo := repo.NewPGCommentRepo(d.db)
	commentCache := cache.NewCommentCache(d.rdb, cfg.Redis.DefaultTTL.Duration())
	commentSvc := service.NewCommentService(commentRepo, d.tasks, commentCache)
	registerCommentRoutes(protected, handlers.NewCommentHandler(commentSvc, userSvc))

	registerBoardRoutes(protected, handlers.NewBoardHandler(d.boards))
	return nil
}

func newMailer(cfg config.MailConfig) service.Mailer {
	if cfg.SMTPAddr == "" {
		return auth.LogMailer{}
	}
	return auth.SMTPMailer{Addr: cfg.SMTPAddr, User: cfg.SMTPUser, Password: cfg.SMTPPassword, From: cfg.From}
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "Task Board API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api/v1",
		})
	}
}

func healthHandler(cfg config.Config, d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		status := http.StatusOK
		body := gin.H{"ok": true, "env": cfg.App.Env, "subscriptions": d.hub.Len(), "boards": d.boards.Len()}
		if err := d.db.Ping(ctx); err != nil {
			status, body["ok"], body["postgres"] = http.StatusServiceUnavailable, false, err.Error()
		}
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			status, body["ok"], body["redis"] = http.StatusServiceUnavailable, false, err.Error()
		}
		c.JSON(status, body)
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.Data(200, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler, requireSession gin.HandlerFunc) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.POST("/auth/logout", h.Logout)
	api.GET("/auth/me", requireSession, h.Me)
	api.POST("/auth/password/forgot", h.ForgotPassword)
	api.POST("/auth/password/reset", h.ResetPassword)
	api.GET("/auth/google/login", h.GoogleLogin)
	api.GET("/auth/google/callback", h.GoogleCallback)
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler) {
	api.POST("/tasks", h.Create)
	api.GET("/tasks/:id", h.GetByID)
	api.PATCH("/tasks/:id", h.Update)
	api.PATCH("/tasks/:id/status", h.Move)
	api.DELETE("/tasks/:id", h.Delete)
	api.POST("/tasks/:id/attachments", h.UploadAttachment)
	api.DELETE("/tasks/:id/attachments/:attachmentId", h.RemoveAttachment)
}

func registerCommentRoutes(api *gin.RouterGroup, h *handlers.CommentHandler) {
	api.GET("/tasks/:id/comments", h.List)
	api.POST("/tasks/:id/comments", h.Create)
}

func registerBoardRoutes(api *gin.RouterGroup, h *handlers.BoardHandler) {
	api.GET("/board", h.Get)
	api.GET("/board/stream", h.Stream)
}
