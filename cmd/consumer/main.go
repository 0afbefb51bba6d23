// Command consumer tails the product scrape stream and prints every event.
// It is a development tool for watching what the relay delivers downstream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/events"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	logger.Info("connected to redis", "addr", redisAddr)

	consumer := &Consumer{
		redis:  rdb,
		stream: getEnv("REDIS_STREAM", database.DefaultTargetStream),
		group:  getEnv("CONSUMER_GROUP", "scrape-consumers"),
		name:   getEnv("CONSUMER_NAME", "consumer-1"),
		logger: logger,
	}

	ctx, cancel := context.WithCancel(ctx)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Consumer error: %v", err)
	}
}

type Consumer struct {
	redis  *redis.Client
	stream string
	group  string
	name   string
	logger *slog.Logger
}

// streamEnvelope mirrors what the relay writes into the "data" field.
type streamEnvelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     string          `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

func (c *Consumer) Run(ctx context.Context) error {
	// BUSYGROUP just means the group already exists.
	if err := c.redis.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err(); err != nil &&
		!strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("consumer started", "stream", c.stream, "group", c.group, "name", c.name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				if err := c.processMessage(message); err != nil {
					c.logger.Error("failed to process message", "id", message.ID, "error", err)
					continue
				}

				if err := c.redis.XAck(ctx, c.stream, c.group, message.ID).Err(); err != nil {
					c.logger.Error("failed to acknowledge message", "id", message.ID, "error", err)
				}
			}
		}
	}
}

func (c *Consumer) processMessage(message redis.XMessage) error {
	raw, ok := message.Values["data"].(string)
	if !ok {
		return fmt.Errorf("message %s has no data field", message.ID)
	}

	var envelope streamEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}

	if envelope.Type != string(events.EventTypeProductScraped) {
		c.logger.Info("event received", "id", message.ID, "type", envelope.Type)
		return nil
	}

	var payload events.ProductScrapedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	attrs := []any{
		"id", message.ID,
		"url", payload.URL,
		"url_hash", payload.URLHash,
		"platform", payload.Platform,
		"title", payload.Product.Title,
	}
	if payload.Product.Price != nil {
		attrs = append(attrs, "price", fmt.Sprintf("%.2f %s", *payload.Product.Price, payload.Product.Currency))
	}

	c.logger.Info("product scraped", attrs...)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
