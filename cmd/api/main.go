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

	"taskboard.org/internal/auth"
	"taskboard.org/internal/httpapi"
	"taskboard.org/internal/obs"
	"taskboard.org/internal/stream"
	"taskboard.org/internal/task"
)

var version = "0.3.1"

func main() {
	obs.Init()

	// Token secrets are mandatory; everything else has a sane default.
	accessSecret := os.Getenv("TASKBOARD_ACCESS_SECRET")
	refreshSecret := os.Getenv("TASKBOARD_REFRESH_SECRET")
	if accessSecret == "" || refreshSecret == "" {
		log.Fatal("TASKBOARD_ACCESS_SECRET and TASKBOARD_REFRESH_SECRET must be set")
	}

	engineOpts := []auth.EngineOption{}
	if spec := os.Getenv("TASKBOARD_ACCESS_TTL"); spec != "" {
		ttl, err := auth.ParseTTL(spec)
		if err != nil {
			log.Fatalf("parse TASKBOARD_ACCESS_TTL: %v", err)
		}
		engineOpts = append(engineOpts, auth.WithEngineAccessTTL(ttl))
	}
	if spec := os.Getenv("TASKBOARD_REFRESH_TTL"); spec != "" {
		ttl, err := auth.ParseTTL(spec)
		if err != nil {
			log.Fatalf("parse TASKBOARD_REFRESH_TTL: %v", err)
		}
		engineOpts = append(engineOpts, auth.WithEngineRefreshTTL(ttl))
	}
	engine, err := auth.NewEngine(accessSecret, refreshSecret, engineOpts...)
	if err != nil {
		log.Fatalf("token engine: %v", err)
	}

	// Postgres when a DSN is configured, in-memory stores otherwise.
	// The in-memory mode keeps local development self-contained.
	var db *sql.DB
	var authStore auth.Store
	var taskStore task.Store
	if dsn := os.Getenv("TASKBOARD_PG_DSN"); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		authStore = auth.NewPGStore(db)
		taskStore = task.NewPGStore(db)
	} else {
		log.Print("TASKBOARD_PG_DSN not set, using in-memory stores")
		authStore = auth.NewInMemory()
		taskStore = task.NewInMemory()
	}

	sessions, err := auth.NewService(authStore, engine)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}
	registry, err := task.NewRegistry(taskStore, authStore.Identities())
	if err != nil {
		log.Fatalf("task registry: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, sessions, registry, stream.New())

	addr := os.Getenv("TASKBOARD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting taskboard-api %s on %s", version, srv.Addr)

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
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
