package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"termscribe/internal/config"
	"termscribe/internal/handlers"
	"termscribe/internal/history"
	"termscribe/internal/logging"
	"termscribe/internal/session"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("Config: %v", err)
	}
	logging.Init(config.Cfg.LogPath)

	linger, _ := config.Cfg.Linger()
	retention, _ := config.Cfg.Retention()
	log.Printf("Config: ListenAddr=%s, SessionLinger=%s, HistoryRetention=%s",
		config.Cfg.ListenAddr, linger, retention)

	hist, err := history.Open(filepath.Join(config.Cfg.DataPath, "history.db"))
	if err != nil {
		log.Fatalf("History store init: %v", err)
	}
	defer hist.Close()

	mgr := session.NewManager(session.ManagerConfig{
		Shell:             config.Cfg.Shell,
		IntegrationScript: config.Cfg.IntegrationScript,
		ScrollbackBytes:   config.Cfg.ScrollbackBytes,
		Linger:            linger,
		History:           hist,
	})
	handlers.SessionMgr = mgr
	handlers.History = hist

	// Background maintenance: reap stale detached sessions and expire old
	// command records.
	c := cron.New()
	c.AddFunc("@every 5m", func() {
		if n := mgr.CleanupIdle(); n > 0 {
			log.Printf("Reaped %d idle sessions", n)
		}
	})
	c.AddFunc("@daily", func() {
		n, err := hist.Prune(retention)
		if err != nil {
			log.Printf("History prune failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Pruned %d expired command records", n)
		}
	})
	c.Start()

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handlers.Health)
	r.Get("/terminal", handlers.TerminalWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", handlers.ListSessions)
		r.Delete("/sessions/{sessionId}", handlers.CloseSession)
		r.Get("/sessions/{sessionId}/history", handlers.SessionHistory)
		r.Get("/history", handlers.RecentHistory)
		r.Get("/logs", handlers.GetServerLogs)
		r.Delete("/logs", handlers.ClearServerLogs)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	c.Stop()
	mgr.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
