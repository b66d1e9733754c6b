package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"qservice/api/internal/app"
	"qservice/api/internal/cases"
	"qservice/api/internal/config"
	"qservice/api/internal/devices"
	"qservice/api/internal/export"
	"qservice/api/internal/extraction"
	"qservice/api/internal/history"
	"qservice/api/internal/localstore"
	"qservice/api/internal/media"
	"qservice/api/internal/remote"
	"qservice/api/internal/report"
	"qservice/api/internal/scheduler"
	"qservice/api/internal/search"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var backend localstore.Backend
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for the local store")
		redisBackend, err := localstore.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisBackend.Close()
		backend = redisBackend
	} else {
		log.Printf("Using %s for the local store", cfg.DataDir)
		fileBackend, err := localstore.NewFileBackend(cfg.DataDir)
		if err != nil {
			log.Fatalf("local store failed: %v", err)
		}
		backend = fileBackend
	}

	adapter := remote.Disabled()
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := remote.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := remote.ApplyMigrations(ctx, db, remote.Migrations()); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		adapter = remote.New(db)
	} else {
		log.Printf("DATABASE_URL not set, remote sync disabled")
	}

	var store media.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := media.NewMinioStore(ctx, media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object storage failed: %v", err)
		}
		store = minioStore
	} else {
		diskStore, err := media.NewDiskStore(cfg.MediaDir, "/api/media")
		if err != nil {
			log.Fatalf("media dir failed: %v", err)
		}
		store = diskStore
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}
	historyService := history.New(cfg.HistoryDir)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}

	// The memory fallback reads the repository, which is built with the
	// search service as its indexer.
	var repo *cases.Repository
	searchService := search.NewService(meiliClient, search.NewMemory(func() []report.Report { return repo.List() }))
	defer searchService.Close()

	repo = cases.New(localstore.NewReports(backend), adapter,
		cases.WithIndexer(searchService),
		cases.WithRecorder(historyService),
	)
	if err := repo.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}
	searchService.Reindex(ctx, repo.List())

	catalog, err := devices.Open(ctx, localstore.NewBlob[devices.Device](backend, localstore.DevicesKey))
	if err != nil {
		log.Fatalf("device catalog failed: %v", err)
	}

	var generator extraction.Generator
	if strings.TrimSpace(cfg.GoogleAPIKey) != "" {
		generator = extraction.NewClient(cfg.GeminiBaseURL, cfg.GoogleAPIKey)
	} else {
		log.Printf("GOOGLE_API_KEY not set, imports run in plain mode")
	}

	exportService := export.NewService(store,
		export.WithOutputDir(cfg.OutputDir),
		export.WithChromeTimeout(cfg.ChromeTimeout),
	)

	service := app.New(cfg, app.Deps{
		Cases:     repo,
		Search:    searchService,
		History:   historyService,
		Media:     store,
		Export:    exportService,
		Devices:   catalog,
		Generator: generator,
	})

	var reindexer scheduler.Reindexer
	if meiliClient != nil {
		reindexer = searchService
	}
	jobs, err := scheduler.New(repo, reindexer)
	if err != nil {
		log.Fatalf("scheduler failed: %v", err)
	}
	jobs.Start()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Q-Service API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := service.Close(shutdownCtx); err != nil {
		log.Printf("flush sessions: %v", err)
	}
	jobs.Stop(shutdownCtx)
}
