package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yakovlavrinov/test-qtim/internal/articles"
	"github.com/yakovlavrinov/test-qtim/internal/auth"
	"github.com/yakovlavrinov/test-qtim/internal/cache"
	"github.com/yakovlavrinov/test-qtim/internal/config"
	"github.com/yakovlavrinov/test-qtim/internal/httpapi"
	"github.com/yakovlavrinov/test-qtim/internal/obs"
)

// Перекрываются через -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Подключение к БД
	db, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Кеш: Redis, либо in-memory когда REDIS_HOST не задан
	var store cache.Store
	if addr := cfg.RedisAddr(); addr != "" {
		store = cache.NewRedisStore(cache.RedisConfig{
			Addr:     addr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		})
	} else {
		log.Println("REDIS_HOST is not set, using in-memory cache")
		store = cache.NewMemoryStore()
	}
	queryCache := cache.NewQueryCache(store)

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
	})
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	sessions := auth.NewService(auth.NewPGUserStore(db), issuer)
	articleSvc := articles.NewService(articles.NewPGStore(db), queryCache, cfg.CacheTTL())

	// HTTP API
	api := httpapi.New(httpapi.ReadyProbe{DB: db, Cache: queryCache}, version, sessions, articleSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           api.Handler(), // уже обёрнут метриками в httpapi
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting articles-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	_ = db.Close()
	log.Println("Stopped")
}
