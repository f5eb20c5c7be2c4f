package ingest

import (
	"context"
	"errors"
	"log"
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/nulldiary/backend/internal/common"
	"github.com/nulldiary/backend/internal/models"
)

const (
	// Message length ceilings in Unicode code points. The larger limit only
	// applies when the message came in through a request body.
	MaxMessageLenURL  = 2000
	MaxMessageLenBody = 10000

	shortIDAttempts = 5
)

// ErrShortIDExhausted means five consecutive short-id collisions, the one
// failure ingestion may report after validation has passed.
var ErrShortIDExhausted = errors.New("short id space exhausted after retries")

// Publisher fans out successfully ingested messages to downstream consumers.
type Publisher interface {
	PublishIngested(ctx context.Context, messageID, shortID string) error
}

// Result is what the HTTP layer serializes back to the client.
type Result struct {
	Status models.ParseStatus
}

type Service struct {
	repo      *Repo
	limiter   *Limiter
	denylist  *Denylist
	publisher Publisher

	newShortID func() (string, error)
}

func NewService(repo *Repo, limiter *Limiter, denylist *Denylist, publisher Publisher) *Service {
	return &Service{
		repo:       repo,
		limiter:    limiter,
		denylist:   denylist,
		publisher:  publisher,
		newShortID: RandomShortID,
	}
}

// Ingest runs the full pipeline: denylist -> rate limit -> parse -> validate
// -> persist. Every request leaves an IngestionEvent behind; a Message row is
// written only when parsing succeeds. A non-nil error means the submission
// could not be durably recorded and should surface as a 5xx.
func (s *Service) Ingest(ctx context.Context, raw RawRequest) (Result, error) {
	fingerprint := HashIP(raw.SourceIP)

	denied, err := s.denylist.Match(ctx, raw.SourceIP)
	if err != nil {
		// A denylist outage must not turn into an ingestion blackout.
		log.Printf("denylist check failed, proceeding: %v", err)
		denied = false
	}
	if denied {
		if err := s.writeEvent(ctx, raw, models.ParseDeniedIP, nil, nil); err != nil {
			return Result{}, err
		}
		// Disguised as success so the block is not observable from outside.
		return Result{Status: models.ParseSuccess}, nil
	}

	if !s.limiter.Allow(ctx, fingerprint) {
		if err := s.writeEvent(ctx, raw, models.ParseRateLimited, nil, nil); err != nil {
			return Result{}, err
		}
		return Result{Status: models.ParseSuccess}, nil
	}

	parsed := ParseMessage(raw)
	if !parsed.OK {
		if err := s.writeEvent(ctx, raw, models.ParseFailed, nil, nil); err != nil {
			return Result{}, err
		}
		return Result{Status: models.ParseFailed}, nil
	}

	limit := MaxMessageLenURL
	if parsed.Source == SourceBody {
		limit = MaxMessageLenBody
	}
	if utf8.RuneCountInString(parsed.Message) > limit {
		if err := s.writeEvent(ctx, raw, models.ParseTooLong, nil, nil); err != nil {
			return Result{}, err
		}
		return Result{Status: models.ParseTooLong}, nil
	}

	s.limiter.Record(ctx, fingerprint)

	msg, err := s.createMessage(ctx, parsed.Message)
	if err != nil {
		// Leave an audit trail even when the Message row could not be
		// written; the event carries no message reference in that case.
		if evErr := s.writeEvent(ctx, raw, models.ParseError, &parsed.Message, nil); evErr != nil {
			log.Printf("ingestion event write failed after message error: %v", evErr)
		}
		return Result{}, err
	}

	// Message first, then the event that references it.
	if err := s.writeEvent(ctx, raw, models.ParseSuccess, &parsed.Message, &msg.ID); err != nil {
		return Result{}, err
	}

	if s.publisher != nil {
		shortID := ""
		if msg.ShortID != nil {
			shortID = *msg.ShortID
		}
		if err := s.publisher.PublishIngested(ctx, msg.ID, shortID); err != nil {
			// Fanout is best-effort; the submission is already durable.
			log.Printf("ingest fanout publish failed message=%s: %v", msg.ID, err)
		}
	}

	return Result{Status: models.ParseSuccess}, nil
}

func (s *Service) createMessage(ctx context.Context, content string) (*models.Message, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	normalized := Normalize(content)
	msg := &models.Message{
		ID:                id,
		Content:           content,
		NormalizedContent: normalized,
		ContentHash:       HashContent(normalized),
		Metadata:          datatypes.JSONMap{},
		ModerationStatus:  models.ModerationPending,
	}

	for attempt := 0; attempt < shortIDAttempts; attempt++ {
		shortID, err := s.newShortID()
		if err != nil {
			return nil, err
		}
		msg.ShortID = &shortID

		err = s.repo.CreateMessage(ctx, msg)
		if err == nil {
			return msg, nil
		}
		if !IsDuplicate(err) {
			return nil, err
		}
	}
	return nil, ErrShortIDExhausted
}

func (s *Service) writeEvent(ctx context.Context, raw RawRequest, status models.ParseStatus, parsedMessage, messageID *string) error {
	id, err := common.NewULID()
	if err != nil {
		return err
	}

	query := datatypes.JSONMap{}
	for k, v := range raw.Query {
		query[k] = v
	}
	headers := datatypes.JSONMap{}
	for k, v := range raw.Headers {
		headers[k] = v
	}

	event := &models.IngestionEvent{
		ID:            id,
		Method:        raw.Method,
		Path:          raw.Path,
		Query:         query,
		Headers:       headers,
		ParsedMessage: parsedMessage,
		ParseStatus:   status,
		MessageID:     messageID,
	}

	if raw.Body != "" {
		body := raw.Body
		if len(body) > maxStoredBody {
			body = body[:maxStoredBody]
		}
		event.Body = &body
	}
	if raw.SourceIP != "" {
		ip := raw.SourceIP
		event.SourceIP = &ip
	}
	if raw.UserAgent != "" {
		ua := raw.UserAgent
		event.UserAgent = &ua
	}

	return s.repo.CreateEvent(ctx, event)
}
