package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"forum-service/internal/models"
	"forum-service/pkg/logger"
)

// NotificationStore persists notifications before they are pushed live.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// NotificationInput is what an event producer wants a user to be told.
type NotificationInput struct {
	Type       string
	Title      string
	Message    string
	EntityType string
	EntityID   string
}

// Dispatcher fans domain events out to matching live connections. Delivery
// is best effort: a failed send is logged and the scan continues.
type Dispatcher struct {
	registry      *Registry
	notifications NotificationStore
	metrics       *Metrics
	logger        *logger.Logger
}

func NewDispatcher(registry *Registry, notifications NotificationStore, metrics *Metrics, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		notifications: notifications,
		metrics:       metrics,
		logger:        log,
	}
}

// BroadcastThreadUpdate pushes a thread_update to every connection currently
// viewing threadID and returns how many sends were accepted.
func (d *Dispatcher) BroadcastThreadUpdate(action ThreadAction, threadID string, payload map[string]any) int {
	targets := d.registry.InThread(threadID)
	if len(targets) == 0 {
		return 0
	}

	data, err := json.Marshal(ThreadUpdate{Action: action, PostID: threadID, Payload: payload})
	if err != nil {
		d.logger.Error("Failed to encode thread update", "action", action, "postID", threadID, "error", err)
		return 0
	}

	delivered := d.deliver(deliveryThread, targets, data)
	d.logger.Debug("Thread update broadcast", "action", action, "postID", threadID, "targets", len(targets), "delivered", delivered)
	return delivered
}

// NotifyUser persists the notification, then mirrors it to the user's live
// connections. The returned error only ever concerns persistence; the user
// having no live connection is not a failure.
func (d *Dispatcher) NotifyUser(ctx context.Context, targetUserID string, in NotificationInput) (*models.Notification, error) {
	n := &models.Notification{
		UserID:     targetUserID,
		Type:       in.Type,
		Title:      in.Title,
		Message:    in.Message,
		EntityType: models.StringPtr(in.EntityType),
		EntityID:   models.StringPtr(in.EntityID),
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification for %s: %w", targetUserID, err)
	}

	targets := d.registry.ForUser(targetUserID)
	if len(targets) == 0 {
		return n, nil
	}

	data, err := json.Marshal(NotificationPush{Notification: NotificationPayload{
		ID:         n.ID,
		Type:       n.Type,
		Title:      n.Title,
		Message:    n.Message,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		CreatedAt:  n.CreatedAt,
	}})
	if err != nil {
		d.logger.Error("Failed to encode notification", "userID", targetUserID, "error", err)
		return n, nil
	}

	d.deliver(deliveryNotification, targets, data)
	return n, nil
}

func (d *Dispatcher) deliver(kind string, targets []Conn, data []byte) int {
	delivered := 0
	for _, conn := range targets {
		err := conn.Send(data)
		d.metrics.delivered(kind, err)
		if err != nil {
			d.logger.Warn("Delivery failed", "kind", kind, "connectionID", conn.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
