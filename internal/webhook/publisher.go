package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ViniMesquitaa/map-medical/internal/models"
)

//go:generate mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks

const (
	webhookQueueKey = "dispatch_webhook_events"
)

// Типы событий диспетчеризации
const (
	EventRequestCreated  = "request.created"
	EventRequestAccepted = "request.accepted"
	EventRequestRejected = "request.rejected"
)

// DispatchEvent - событие о создании заявки или решении врача
type DispatchEvent struct {
	Type          string               `json:"type"`
	RequestID     uuid.UUID            `json:"request_id"`
	EmergencyType string               `json:"emergency_type"`
	Address       string               `json:"address"`
	Status        models.RequestStatus `json:"status"`
	Latitude      float64              `json:"latitude"`
	Longitude     float64              `json:"longitude"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewDispatchEvent строит событие по текущему состоянию заявки
func NewDispatchEvent(req *models.EmergencyRequest) DispatchEvent {
	eventType := EventRequestCreated
	switch req.Status {
	case models.StatusAccepted:
		eventType = EventRequestAccepted
	case models.StatusRejected:
		eventType = EventRequestRejected
	}
	ts := req.CreatedAt
	if req.RespondedAt != nil {
		ts = *req.RespondedAt
	}
	return DispatchEvent{
		Type:          eventType,
		RequestID:     req.ID,
		EmergencyType: req.EmergencyType,
		Address:       req.Address,
		Status:        req.Status,
		Latitude:      req.Coordinates.Latitude,
		Longitude:     req.Coordinates.Longitude,
		Timestamp:     ts,
	}
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event DispatchEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event DispatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH в паре с BRPOP воркера дает FIFO
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}
