package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Post is the head of a discussion thread.
type Post struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	AuthorID     string    `gorm:"type:varchar(36);not null;index" json:"authorId"`
	CategoryID   string    `gorm:"type:varchar(36);index" json:"categoryId,omitempty"`
	IsPinned     bool      `gorm:"default:false" json:"isPinned"`
	IsLocked     bool      `gorm:"default:false" json:"isLocked"`
	ViewCount    int       `gorm:"default:0" json:"viewCount"`
	LikeCount    int       `gorm:"default:0" json:"likeCount"`
	CommentCount int       `gorm:"default:0" json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Comment belongs to a post and optionally replies to another comment.
type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"type:varchar(36);not null;index" json:"authorId"`
	PostID    string    `gorm:"type:varchar(36);not null;index" json:"postId"`
	ParentID  *string   `gorm:"type:varchar(36)" json:"parentId,omitempty"`
	LikeCount int       `gorm:"default:0" json:"likeCount"`
	IsDeleted bool      `gorm:"default:false" json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type PostLike struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null" json:"userId"`
	PostID    string    `gorm:"type:varchar(36);not null" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

type CommentLike struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null" json:"userId"`
	CommentID string    `gorm:"type:varchar(36);not null" json:"commentId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *CommentLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

/** -------------------- DTOs -------------------- */
// Request
type CreateCommentRequest struct {
	Content  string  `json:"content" binding:"required,min=1"`
	ParentID *string `json:"parentId,omitempty"`
}

// Response
type LikeResponse struct {
	Liked bool `json:"liked"`
}
