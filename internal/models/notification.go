package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types produced by forum activity.
const (
	NotificationTypeComment = "comment"
	NotificationTypeLike    = "like"
	NotificationTypeMention = "mention"
)

/** --------------------ENTITIES-------------------- */
// Notification is persisted before it is pushed to live connections, so an
// offline user still sees it through the unread count on the next fetch.
type Notification struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string    `gorm:"type:varchar(36);not null" json:"userId"`
	Type       string    `gorm:"type:varchar(50);not null" json:"type"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Message    string    `gorm:"type:text" json:"message"`
	IsRead     bool      `gorm:"default:false" json:"isRead"`
	EntityType *string   `gorm:"type:varchar(50)" json:"entityType,omitempty"`
	EntityID   *string   `gorm:"type:varchar(36)" json:"entityId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}

/** -------------------- DTOs -------------------- */
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
