// Package audit publishes auth and todo mutation events to Kafka,
// fire-and-forget. Publishing is disabled when no brokers are
// configured; a publish failure never fails the request that caused it.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"todoapi/internal/config"
	"todoapi/pkg/logger"
)

const (
	EventLogin         = "auth.login"
	EventLoginFailed   = "auth.login_failed"
	EventRefresh       = "auth.refresh"
	EventRefreshFailed = "auth.refresh_failed"
	EventTodoCreated   = "todo.created"
	EventTodoUpdated   = "todo.updated"
	EventTodoDeleted   = "todo.deleted"
)

// Event is one audit record.
type Event struct {
	Type    string    `json:"type"`
	UserID  string    `json:"user_id,omitempty"`
	Email   string    `json:"email,omitempty"`
	TodoID  string    `json:"todo_id,omitempty"`
	TokenID string    `json:"token_id,omitempty"`
	At      time.Time `json:"at"`
}

var (
	writer *kafka.Writer
	wOnce  sync.Once
)

// Producer returns the global Kafka writer for audit events, or nil
// when no brokers are configured.
func Producer(ctx context.Context) *kafka.Writer {
	wOnce.Do(func() {
		cfg := config.Get()
		if len(cfg.KafkaBrokers) == 0 {
			return
		}
		writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 0,
			Async:        true,
			RequiredAcks: kafka.RequireOne,
		}
		logger.Info(ctx, "Audit producer initialized", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	})
	return writer
}

// Publish sends one event. Non-blocking with the async writer; errors
// are logged and swallowed.
func Publish(ctx context.Context, ev Event) {
	w := Producer(ctx)
	if w == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Debug(ctx, "Audit marshal failed", "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(ev.Type), Value: payload}
	if err := w.WriteMessages(ctx, msg); err != nil {
		logger.Debug(ctx, "Audit publish failed", "error", err, "type", ev.Type)
	}
}

// EnsureTopic creates the audit topic with configured partitions
// (idempotent). Call at startup; if it fails, the app still runs.
func EnsureTopic(ctx context.Context) {
	cfg := config.Get()
	if len(cfg.KafkaBrokers) == 0 {
		return
	}
	conn, err := kafka.Dial("tcp", cfg.KafkaBrokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     cfg.KafkaPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", cfg.KafkaTopic, "partitions", cfg.KafkaPartitions)
}
