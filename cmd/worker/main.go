package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nulldiary/backend/internal/config"
	"github.com/nulldiary/backend/internal/db"
	"github.com/nulldiary/backend/internal/email"
	"github.com/nulldiary/backend/internal/moderation"
	"github.com/nulldiary/backend/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// notifyModerator mails the moderation inbox about a freshly ingested
// message awaiting review.
func notifyModerator(ctx context.Context, repo *moderation.Repo, smtp email.SMTPConfig, to string, ev rabbitmq.IngestedMessage) error {
	msg, err := repo.GetMessage(ctx, ev.MessageID)
	if err != nil {
		return err
	}

	preview := msg.Content
	if runes := []rune(preview); len(runes) > 200 {
		preview = string(runes[:200]) + "…"
	}

	subject := "New message pending review"
	body := fmt.Sprintf(
		"A new anonymous message is awaiting moderation.\n\n"+
			"ID: %s\nShort ID: %s\nReceived: %s\n\nPreview:\n%s\n",
		msg.ID, ev.ShortID, msg.CreatedAt.Format(time.RFC3339), preview,
	)
	return email.SendText(smtp, to, subject, body)
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := moderation.NewRepo(gdb)

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}
	if cfg.ModeratorEmail == "" {
		log.Printf("MODERATOR_EMAIL not set, notifications will be dropped")
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// Declare with the same dead-letter topology as the publisher.
	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev rabbitmq.IngestedMessage
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.MessageID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				if cfg.ModeratorEmail == "" {
					_ = d.Ack(false)
					continue
				}

				start := time.Now()
				if err := notifyModerator(ctx, repo, smtp, cfg.ModeratorEmail, ev); err != nil {
					log.Printf("worker=%d notify failed message=%s cost=%s err=%v",
						workerID, ev.MessageID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed message=%s err=%v", workerID, ev.MessageID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
