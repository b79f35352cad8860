// Package main is the entry point for the payment recorder (prm).
// It opens the ledger store, wires the host application, and serves the
// HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payrecorder.mini/prm/internal/api"
	"payrecorder.mini/prm/internal/config"
	"payrecorder.mini/prm/internal/docs"
	"payrecorder.mini/prm/internal/events"
	"payrecorder.mini/prm/internal/host"
	"payrecorder.mini/prm/internal/ledger"
	"payrecorder.mini/prm/internal/logger"
	"payrecorder.mini/prm/internal/store"
	"payrecorder.mini/prm/internal/types"
	"payrecorder.mini/prm/internal/web"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to JSON config file")
	inMemory := flag.Bool("memory", false, "Keep the ledger in memory only")
	flag.Parse()

	log.Printf("prm %s starting...", types.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *inMemory {
		cfg.InMemory = true
	}

	var backupEvery time.Duration
	if cfg.BackupInterval != "" {
		backupEvery, err = time.ParseDuration(cfg.BackupInterval)
		if err != nil || backupEvery <= 0 {
			log.Fatalf("Invalid backup_interval %q", cfg.BackupInterval)
		}
	}

	statusLog := logger.New(cfg.LogBuffer)
	broker := events.NewBroker(cfg.RecentEvents)

	var (
		ledgerStore ledger.Store
		journal     host.Journal
		backups     api.Backups
		db          *store.Store
	)
	if cfg.InMemory {
		ledgerStore = ledger.NewState()
		journal = host.NewMemoryJournal()
		log.Println("Ledger kept in memory; records are lost on exit")
	} else {
		db, err = store.NewStore(cfg.DBFile)
		if err != nil {
			log.Fatalf("Failed to initialize ledger store: %v", err)
		}
		defer db.Close()
		ledgerStore, journal, backups = db, db, db
		log.Printf("Ledger store initialized at %s", db.Path())
	}

	l := ledger.New(ledgerStore, broker, ledger.WithMaxHistory(cfg.MaxHistory))
	app := host.NewApplication(l, journal, host.WithRateLimit(cfg.RatePerSecond, cfg.RateBurst))

	if err := ensurePortAvailable(cfg.Port); err != nil {
		log.Fatalf("Port %d unavailable: %v", cfg.Port, err)
	}

	apiService := api.NewService(app, backups, broker, statusLog, cfg.MaxBackups)
	server, err := web.NewServer(cfg.Port, apiService, broker, docs.NewService(cfg.DocsDir), statusLog)
	if err != nil {
		log.Fatalf("Failed to initialize web server: %v", err)
	}

	serverErrors := server.Start()
	log.Printf("API available at http://localhost:%d/api", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if db != nil && backupEvery > 0 {
		go runBackups(ctx, db, backupEvery, cfg.MaxBackups, statusLog)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Printf("Web server exited: %v", err)
		}
	case <-sigChan:
	}

	log.Println("Shutting down...")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: shutdown: %v", err)
	}
}

// runBackups snapshots the ledger periodically until ctx is done.
func runBackups(ctx context.Context, db *store.Store, every time.Duration, maxBackups int, statusLog *logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path, err := db.BackupCurrent(maxBackups)
			if err != nil {
				statusLog.Errorf("Scheduled backup failed: %v", err)
				continue
			}
			statusLog.Infof("Scheduled backup written to %s", path)
		}
	}
}

func ensurePortAvailable(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}
