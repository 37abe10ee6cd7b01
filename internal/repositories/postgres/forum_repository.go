package postgres

import (
	"context"
	"errors"
	"fmt"

	"forum-service/internal/models"

	"gorm.io/gorm"
)

// ForumRepository covers posts, comments and their likes. Counter columns are
// updated in the same transaction as the row they count.
type ForumRepository struct {
	db *gorm.DB
}

func NewForumRepository(db *gorm.DB) *ForumRepository {
	return &ForumRepository{db: db}
}

func (r *ForumRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

func (r *ForumRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ? AND is_deleted = ?", id, false).Error; err != nil {
		return nil, notFound(err)
	}
	return &comment, nil
}

func (r *ForumRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *ForumRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
}

// TogglePostLike likes the post, or unlikes it if the user already did, and
// reports the resulting state.
func (r *ForumRepository) TogglePostLike(ctx context.Context, userID, postID string) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var like models.PostLike
		err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&like).Error
		switch {
		case err == nil:
			if err := tx.Delete(&like).Error; err != nil {
				return err
			}
			return tx.Model(&models.Post{}).Where("id = ?", postID).
				UpdateColumn("like_count", gorm.Expr("GREATEST(like_count - 1, 0)")).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			liked = true
			if err := tx.Create(&models.PostLike{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Post{}).Where("id = ?", postID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle post like: %w", err)
	}
	return liked, nil
}

func (r *ForumRepository) ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var like models.CommentLike
		err := tx.Where("user_id = ? AND comment_id = ?", userID, commentID).First(&like).Error
		switch {
		case err == nil:
			if err := tx.Delete(&like).Error; err != nil {
				return err
			}
			return tx.Model(&models.Comment{}).Where("id = ?", commentID).
				UpdateColumn("like_count", gorm.Expr("GREATEST(like_count - 1, 0)")).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			liked = true
			if err := tx.Create(&models.CommentLike{UserID: userID, CommentID: commentID}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Comment{}).Where("id = ?", commentID).
				UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle comment like: %w", err)
	}
	return liked, nil
}

// Stats counts users, posts and live comments. OnlineUsers is left for the
// caller to fill in.
func (r *ForumRepository) Stats(ctx context.Context) (models.CommunityStats, error) {
	var stats models.CommunityStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Post{}).Count(&stats.TotalPosts).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&models.Comment{}).Where("is_deleted = ?", false).Count(&stats.TotalComments).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
