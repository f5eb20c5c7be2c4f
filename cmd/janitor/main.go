package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nulldiary/backend/internal/config"
	"github.com/nulldiary/backend/internal/db"
	"github.com/nulldiary/backend/internal/ingest"
	"github.com/nulldiary/backend/internal/moderation"
)

const backfillBatch = 100

// backfillShortIDs assigns short IDs to rows that predate them, one batch
// per run, with the same bounded collision retry as ingestion.
func backfillShortIDs(ctx context.Context, repo *ingest.Repo) {
	msgs, err := repo.ListMessagesMissingShortID(ctx, backfillBatch)
	if err != nil {
		log.Printf("janitor: backfill list failed: %v", err)
		return
	}

	filled := 0
	for _, msg := range msgs {
		for attempt := 0; attempt < 5; attempt++ {
			shortID, err := ingest.RandomShortID()
			if err != nil {
				log.Printf("janitor: short id generation failed: %v", err)
				return
			}
			err = repo.SetShortID(ctx, msg.ID, shortID)
			if err == nil {
				filled++
				break
			}
			if !ingest.IsDuplicate(err) {
				log.Printf("janitor: backfill message=%s failed: %v", msg.ID, err)
				break
			}
		}
	}
	if filled > 0 {
		log.Printf("janitor: backfilled %d short ids", filled)
	}
}

func runOnce(ctx context.Context, modRepo *moderation.Repo, ingestRepo *ingest.Repo, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	deleted, err := modRepo.DeleteDeniedOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("janitor: purge denied failed: %v", err)
	} else if deleted > 0 {
		log.Printf("janitor: purged %d denied messages older than %s", deleted, cutoff.Format(time.RFC3339))
	}

	backfillShortIDs(ctx, ingestRepo)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	modRepo := moderation.NewRepo(gdb)
	ingestRepo := ingest.NewRepo(gdb)

	retention := time.Duration(cfg.DeniedRetentionDays) * 24 * time.Hour
	interval := time.Duration(cfg.JanitorIntervalMinutes) * time.Minute

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("janitor started, interval=%s retention=%s", interval, retention)
	runOnce(ctx, modRepo, ingestRepo, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("janitor shutting down")
			return
		case <-ticker.C:
			runOnce(ctx, modRepo, ingestRepo, retention)
		}
	}
}
