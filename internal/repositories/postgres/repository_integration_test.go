//go:build integration

package postgres

import (
	"context"
	"testing"

	"forum-service/internal/database"
	"forum-service/internal/models"
	"forum-service/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("forum"),
		tcpostgres.WithUsername("forum"),
		tcpostgres.WithPassword("forum"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewPostgresConnection(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedThread(t *testing.T, db *gorm.DB) (*models.User, *models.User, *models.Post) {
	t.Helper()
	ctx := context.Background()
	users := NewUserRepository(db)

	author := &models.User{Username: "alice", Password: "x"}
	reader := &models.User{Username: "bob", Password: "x"}
	require.NoError(t, users.Create(ctx, author))
	require.NoError(t, users.Create(ctx, reader))

	post := &models.Post{Title: "Hello", Content: "First post", AuthorID: author.ID}
	require.NoError(t, NewForumRepository(db).CreatePost(ctx, post))
	return author, reader, post
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	user := &models.User{Username: "alice", Password: "hash", Email: models.StringPtr("a@example.com")}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "user", user.Role)

	err := repo.Create(ctx, &models.User{Username: "alice", Password: "hash"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	found, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestForumRepositoryCountersAndToggles(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, reader, post := seedThread(t, db)
	repo := NewForumRepository(db)

	comment := &models.Comment{Content: "Nice", AuthorID: reader.ID, PostID: post.ID}
	require.NoError(t, repo.CreateComment(ctx, comment))

	got, err := repo.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentCount)

	liked, err := repo.TogglePostLike(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	got, _ = repo.GetPostByID(ctx, post.ID)
	assert.Equal(t, 1, got.LikeCount)

	liked, err = repo.TogglePostLike(ctx, reader.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	got, _ = repo.GetPostByID(ctx, post.ID)
	assert.Equal(t, 0, got.LikeCount)

	liked, err = repo.ToggleCommentLike(ctx, reader.ID, comment.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	c, err := repo.GetCommentByID(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.LikeCount)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalPosts)
	assert.Equal(t, int64(1), stats.TotalComments)

	_, err = repo.GetPostByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestNotificationRepositoryScopesToOwner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	author, reader, _ := seedThread(t, db)
	repo := NewNotificationRepository(db)

	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Create(ctx, &models.Notification{UserID: author.ID, Type: models.NotificationTypeLike, Title: title}))
	}
	other := &models.Notification{UserID: reader.ID, Type: models.NotificationTypeComment, Title: "theirs"}
	require.NoError(t, repo.Create(ctx, other))

	list, err := repo.List(ctx, author.ID, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	count, err := repo.UnreadCount(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	assert.ErrorIs(t, repo.MarkRead(ctx, author.ID, other.ID), repositories.ErrNotFound)
	require.NoError(t, repo.MarkRead(ctx, author.ID, list[0].ID))
	count, _ = repo.UnreadCount(ctx, author.ID)
	assert.Equal(t, int64(2), count)

	n, err := repo.MarkAllRead(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	count, _ = repo.UnreadCount(ctx, reader.ID)
	assert.Equal(t, int64(1), count)
}
