package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-uks-api/internal/models"
	"github.com/noah-isme/sma-uks-api/pkg/config"
	"github.com/noah-isme/sma-uks-api/pkg/jobs"
)

// NotificationService delivers workflow notifications fire-and-forget:
// enqueueing never fails the calling operation, and delivery failures are
// retried by the queue and then dropped with a log line. The actual
// transport (push, email) subscribes to the Redis channel.
type NotificationService struct {
	client  *redis.Client
	queue   *jobs.Queue
	channel string
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs the dispatcher. A nil Redis client
// disables publishing while keeping the call sites unconditional.
func NewNotificationService(client *redis.Client, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		client:  client,
		channel: cfg.Channel,
		logger:  logger,
		enabled: cfg.Enabled && client != nil,
	}
	s.queue = jobs.NewQueue("notifications", s.dispatch, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification. Errors are logged, never returned: the
// producing operation must not roll back on delivery problems.
func (s *NotificationService) Notify(n models.Notification) {
	if !s.enabled {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(n.Type),
		Payload: n,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("type", string(n.Type)),
			zap.String("campaign_id", n.CampaignID),
			zap.Error(err))
	}
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		s.logger.Error("failed to marshal notification", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
