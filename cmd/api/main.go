package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/auth"
	"github.com/nulldiary/backend/internal/config"
	"github.com/nulldiary/backend/internal/db"
	"github.com/nulldiary/backend/internal/httpapi"
	"github.com/nulldiary/backend/internal/ingest"
	"github.com/nulldiary/backend/internal/models"
	"github.com/nulldiary/backend/internal/store/rabbitmq"
	"github.com/nulldiary/backend/internal/store/redisstore"
)

// bootstrapAdmin seeds the first admin account from env credentials so a
// fresh deployment can log in.
func bootstrapAdmin(gdb *gorm.DB, cfg config.Config) {
	if cfg.AdminPassword == "" {
		return
	}

	var cnt int64
	if err := gdb.Model(&models.AdminUser{}).
		Where("username = ?", cfg.AdminUsername).
		Count(&cnt).Error; err != nil {
		log.Printf("admin bootstrap check failed: %v", err)
		return
	}
	if cnt > 0 {
		return
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Printf("admin bootstrap hash failed: %v", err)
		return
	}
	if err := gdb.Create(&models.AdminUser{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
	}).Error; err != nil {
		log.Printf("admin bootstrap create failed: %v", err)
		return
	}
	log.Printf("admin user %q created", cfg.AdminUsername)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	db.Migrate(gdb)
	bootstrapAdmin(gdb, cfg)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	if err := rds.Ping(context.Background()); err != nil {
		// Rate limiting fails open, so a missing Redis only costs us limits.
		log.Printf("redis unreachable, rate limiting will fail open: %v", err)
	}

	var publisher ingest.Publisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Printf("rabbit unavailable, ingest fanout disabled: %v", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	router := httpapi.NewRouter(gdb, cfg, rds, publisher)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
