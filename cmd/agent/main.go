package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cator197/checkauto-saas/internal/cache"
	"github.com/Cator197/checkauto-saas/internal/client"
	"github.com/Cator197/checkauto-saas/internal/config"
	"github.com/Cator197/checkauto-saas/internal/handler"
	"github.com/Cator197/checkauto-saas/internal/repository"
	"github.com/Cator197/checkauto-saas/internal/router"
	"github.com/Cator197/checkauto-saas/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting CheckAuto sync agent...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Durable local store. Without it the agent cannot guarantee queued
	// mutations survive a restart, so this is fatal.
	store, err := repository.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()
	if version, err := store.CurrentVersion(); err == nil {
		log.Printf("Local store ready at %s (schema v%d)", cfg.Store.Path, version)
	}

	// Remote API client with token refresh.
	tokens := client.NewMemoryTokenStore(cfg.Remote.AccessToken, cfg.Remote.RefreshToken)
	api := client.New(cfg.Remote.BaseURL, cfg.Remote.Timeout, tokens)
	api.OnUnauthorized(func() {
		log.Printf("Session expired and refresh failed; queued items will wait for new credentials")
	})

	// Stage-catalog cache. Redis is optional; a failed connection falls
	// back to the in-process cache with a warning.
	var stageCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, using memory cache: %v", err)
			stageCache = cache.NewMemoryCache()
		} else {
			defer redisCache.Close()
			stageCache = redisCache
			log.Println("Redis stage cache initialized")
		}
	default:
		stageCache = cache.NewMemoryCache()
	}

	catalog := service.NewStageCatalog(stageCache, api, cfg.Cache.TTL)

	watcher := service.NewConnectivityWatcher(api, cfg.Sync.ProbePath, cfg.Sync.ProbeInterval)

	engine := service.NewSyncEngine(
		store.SyncQueue(),
		store.Production(),
		store.CheckIns(),
		store.Vehicles(),
		api,
		catalog,
		watcher,
	)

	if cfg.Sync.AutoDrain {
		watcher.Subscribe(func() {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout*4)
				defer cancel()
				result := engine.Drain(ctx)
				log.Printf("Auto drain after reconnect: %s (%d ok, %d failed)",
					result.Status, result.Processed, result.Failed)
			}()
		})
	}
	watcher.Start()
	defer watcher.Stop()

	actions := service.NewWorkOrderService(store.SyncQueue(), store.Production(), store.CheckIns())
	reconciler := service.NewReconciler(store.Vehicles(), store.Production(), catalog)

	healthHandler := handler.New(store)
	syncHandler := handler.NewSyncHandler(
		engine,
		watcher,
		store.SyncQueue(),
		store.CheckIns(),
		reconciler,
		actions,
	)

	r := router.New(router.Config{
		Handler:     healthHandler,
		SyncHandler: syncHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Agent listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down agent...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Give an in-flight drain a moment to record its bookkeeping.
	for i := 0; engine.Running() && i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
	}

	log.Println("Agent stopped")
	fmt.Println("Goodbye!")
}
