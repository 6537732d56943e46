package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dordunu1/taskboard/internal/auth"
	"github.com/dordunu1/taskboard/internal/blob"
	"github.com/dordunu1/taskboard/internal/config"
	"github.com/dordunu1/taskboard/internal/feed"
	"github.com/dordunu1/taskboard/internal/repo"
	"github.com/dordunu1/taskboard/internal/tasksync"
	"github.com/dordunu1/taskboard/migrations"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg    config.Config
	db     *pgxpool.Pool
	redis  *redis.Client
	hub    *feed.Hub
	boards *tasksync.Manager
	router *gin.Engine

	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(cfg config.Config) (*App, error) {
	a := &App{cfg: cfg}

	db, err := NewPostgres(cfg.PG.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db

	rdb, err := newRedis(cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.redis = rdb

	if err := Migrate(context.Background(), cfg.PG.DSN, "up"); err != nil {
		a.redis.Close()
		a.db.Close()
		return nil, err
	}

	store, err := newBlobStore(cfg)
	if err != nil {
		a.redis.Close()
		a.db.Close()
		return nil, err
	}

	tasks := repo.NewPGTaskRepo(db)
	a.hub = feed.NewHub(tasks)
	a.boards = tasksync.NewManager(a.hub)
	sessions := auth.NewStore(rdb, cfg.Auth.SessionTTL.Duration())

	a.router, err = newRouter(cfg, deps{
		db:       db,
		rdb:      rdb,
		tasks:    tasks,
		store:    store,
		hub:      a.hub,
		boards:   a.boards,
		sessions: sessions,
	})
	if err != nil {
		a.redis.Close()
		a.db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = feed.NewPGListener(db, a.hub).Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.boards.RunReaper(ctx, cfg.Sync.ReapInterval.Duration(), sessions.Exists)
	}()
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// EndStreams stops every live board so open board streams return.
func (a *App) EndStreams() {
	if a.boards != nil {
		a.boards.Close()
	}
}

// Close stops the feed and every live board, then the connections.
func (a *App) Close(ctx context.Context) error {
	if a.stop != nil {
		a.stop()
	}
	if a.boards != nil {
		a.boards.Close()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("shutdown: background workers still running: %v", ctx.Err())
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	return nil
}

// NewPostgres opens and pings a pool.
func NewPostgres(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	// One connection is held by the change listener.
	cfg.MaxConns = 11
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

func newBlobStore(cfg config.Config) (blob.Store, error) {
	switch cfg.Blob.Driver {
	case "gcs":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return blob.NewGCSStore(ctx, cfg.Blob.GCSBucket, cfg.Blob.GCSCredentialsFile)
	default:
		return blob.NewLocalStore(cfg.Blob.LocalDir, cfg.App.PublicURL+localFilesPath)
	}
}

// Migrate runs a goose command ("up", "down", "status", ...) with the
// embedded migrations.
func Migrate(ctx context.Context, dsn, command string, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()

	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func newRouter(cfg config.Config, d deps) (*gin.Engine, error) {
	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := Setup(r, cfg, d); err != nil {
		return nil, err
	}
	return r, nil
}
