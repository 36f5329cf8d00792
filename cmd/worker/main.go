// Worker consumes security events from Kafka and persists them as audit log entries.
// Set KAFKA_BROKERS, SECURITY_KAFKA_TOPIC, KAFKA_GROUP_ID, and DATABASE_URL.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	auditdomain "tenant-platform/backend/internal/audit/domain"
	auditrepo "tenant-platform/backend/internal/audit/repository"
	"tenant-platform/backend/internal/config"
	"tenant-platform/backend/internal/db"
	telemetrydomain "tenant-platform/backend/internal/telemetry/domain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.SecurityKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	topic := cfg.SecurityKafkaTopic
	if topic == "" {
		topic = "platform-security-events"
	}
	groupID := cfg.SecurityKafkaGroupID
	if groupID == "" {
		groupID = "platform-security-worker"
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: db open: %v", err)
	}
	defer database.Close()
	audits := auditrepo.NewPostgresRepository(database)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s)", topic, groupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		writeCtx, writeCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := persistEvent(writeCtx, audits, msg.Value); err != nil {
			log.Printf("worker: audit write failed: %v", err)
		}
		writeCancel()
	}
}

// persistEvent decodes one security event and stores it as an audit log entry.
// Malformed payloads are logged and dropped; they would never decode on retry.
func persistEvent(ctx context.Context, audits auditrepo.Repository, payload []byte) error {
	var ev telemetrydomain.SecurityEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("worker: dropping malformed event: %v", err)
		return nil
	}

	orgID := ev.OrgID
	if orgID == "" {
		orgID = "_system"
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	meta := ""
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err == nil {
			meta = string(raw)
		}
	}

	return audits.Create(ctx, &auditdomain.AuditLog{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		PrincipalID: ev.PrincipalID,
		Action:      ev.EventType,
		Resource:    ev.Source,
		IP:          "unknown",
		Metadata:    meta,
		CreatedAt:   createdAt,
	})
}
