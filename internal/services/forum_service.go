package services

import (
	"context"
	"errors"
	"fmt"

	"forum-service/internal/models"
	"forum-service/internal/repositories"
	"forum-service/internal/session"
	"forum-service/internal/websocket"
	"forum-service/pkg/logger"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrPostLocked      = errors.New("post is locked")
	ErrInvalidParent   = errors.New("parent comment belongs to another post")
)

type ForumStore interface {
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	TogglePostLike(ctx context.Context, userID, postID string) (bool, error)
	ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, error)
	Stats(ctx context.Context) (models.CommunityStats, error)
}

// Notifier is the realtime side of a write: a thread broadcast plus an
// optional user notification.
type Notifier interface {
	BroadcastThreadUpdate(action websocket.ThreadAction, threadID string, payload map[string]any) int
	NotifyUser(ctx context.Context, targetUserID string, in websocket.NotificationInput) (*models.Notification, error)
}

// ForumService runs forum writes. Realtime events are emitted only after the
// write has committed, and a failure to emit never fails the write.
type ForumService struct {
	store    ForumStore
	notifier Notifier
	logger   *logger.Logger
}

func NewForumService(store ForumStore, notifier Notifier, log *logger.Logger) *ForumService {
	return &ForumService{
		store:    store,
		notifier: notifier,
		logger:   log,
	}
}

func (s *ForumService) CreateComment(ctx context.Context, actor session.Identity, postID string, req *models.CreateCommentRequest) (*models.Comment, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, mapNotFound(err, ErrPostNotFound)
	}
	if post.IsLocked {
		return nil, ErrPostLocked
	}

	action := websocket.ActionCommentCreated
	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.store.GetCommentByID(ctx, *req.ParentID)
		if err != nil {
			return nil, mapNotFound(err, ErrCommentNotFound)
		}
		if parent.PostID != postID {
			return nil, ErrInvalidParent
		}
		action = websocket.ActionReplyCreated
	}

	comment := &models.Comment{
		Content:  req.Content,
		AuthorID: actor.ID,
		PostID:   postID,
		ParentID: req.ParentID,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.notifier.BroadcastThreadUpdate(action, postID, map[string]any{
		"comment":  comment,
		"authorId": actor.ID,
	})
	if post.AuthorID != actor.ID {
		s.notify(ctx, post.AuthorID, websocket.NotificationInput{
			Type:       models.NotificationTypeComment,
			Title:      "New Comment",
			Message:    fmt.Sprintf("Someone commented on your post: %q", post.Title),
			EntityType: "post",
			EntityID:   postID,
		})
	}
	return comment, nil
}

func (s *ForumService) TogglePostLike(ctx context.Context, actor session.Identity, postID string) (bool, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return false, mapNotFound(err, ErrPostNotFound)
	}

	liked, err := s.store.TogglePostLike(ctx, actor.ID, postID)
	if err != nil {
		return false, err
	}

	s.notifier.BroadcastThreadUpdate(websocket.ActionPostLiked, postID, map[string]any{
		"liked":  liked,
		"userId": actor.ID,
	})
	if liked && post.AuthorID != actor.ID {
		s.notify(ctx, post.AuthorID, websocket.NotificationInput{
			Type:       models.NotificationTypeLike,
			Title:      "Post Liked",
			Message:    fmt.Sprintf("Someone liked your post: %q", post.Title),
			EntityType: "post",
			EntityID:   postID,
		})
	}
	return liked, nil
}

func (s *ForumService) ToggleCommentLike(ctx context.Context, actor session.Identity, commentID string) (bool, error) {
	comment, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		return false, mapNotFound(err, ErrCommentNotFound)
	}

	liked, err := s.store.ToggleCommentLike(ctx, actor.ID, commentID)
	if err != nil {
		return false, err
	}

	s.notifier.BroadcastThreadUpdate(websocket.ActionCommentLiked, comment.PostID, map[string]any{
		"commentId": commentID,
		"liked":     liked,
		"userId":    actor.ID,
	})
	if liked && comment.AuthorID != actor.ID {
		s.notify(ctx, comment.AuthorID, websocket.NotificationInput{
			Type:       models.NotificationTypeLike,
			Title:      "Comment Liked",
			Message:    "Someone liked your comment",
			EntityType: "comment",
			EntityID:   commentID,
		})
	}
	return liked, nil
}

func (s *ForumService) Stats(ctx context.Context) (models.CommunityStats, error) {
	return s.store.Stats(ctx)
}

func (s *ForumService) notify(ctx context.Context, userID string, in websocket.NotificationInput) {
	if _, err := s.notifier.NotifyUser(ctx, userID, in); err != nil {
		s.logger.Error("Failed to notify user", "userID", userID, "type", in.Type, "error", err)
	}
}

func mapNotFound(err, target error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return target
	}
	return err
}
