package handlers

import (
	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/config"
	"github.com/nulldiary/backend/internal/ingest"
	"github.com/nulldiary/backend/internal/moderation"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	IngestSvc *ingest.Service
	Engine    *moderation.Engine
	ModRepo   *moderation.Repo
}

// NewHandler wires the ingestion pipeline and the moderation engine.
// counters and publisher may be nil (rate limiting fails open, fanout off).
func NewHandler(db *gorm.DB, cfg config.Config, counters ingest.CounterStore, publisher ingest.Publisher) *Handler {
	limiter := ingest.NewLimiter(counters, ingest.RateLimits{
		PerMinute: cfg.RatePerMinute,
		PerHour:   cfg.RatePerHour,
		PerDay:    cfg.RatePerDay,
	})
	ingestSvc := ingest.NewService(ingest.NewRepo(db), limiter, ingest.NewDenylist(db), publisher)

	modRepo := moderation.NewRepo(db)

	return &Handler{
		DB:        db,
		Cfg:       cfg,
		IngestSvc: ingestSvc,
		Engine:    moderation.NewEngine(modRepo),
		ModRepo:   modRepo,
	}
}
