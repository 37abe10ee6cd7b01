package main

import (
	"context"
	"errors"
	"log"
	"os"

	"forum-service/internal/config"
	"forum-service/internal/database"
	"forum-service/internal/models"
	"forum-service/internal/repositories"
	"forum-service/internal/repositories/postgres"
	"forum-service/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	appLogger, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting database seeding...")

	db, err := database.NewPostgresConnection(cfg.Database.URI)
	if err != nil {
		appLogger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		appLogger.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	userRepo := postgres.NewUserRepository(db)
	forumRepo := postgres.NewForumRepository(db)

	seedUsers := []struct {
		username string
		email    string
		role     string
	}{
		{"admin", "admin@forum.local", "admin"},
		{"alice", "alice@forum.local", "user"},
		{"bob", "bob@forum.local", "user"},
		{"charlie", "charlie@forum.local", "user"},
	}

	users := make(map[string]*models.User, len(seedUsers))
	for _, u := range seedUsers {
		hashed, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.DefaultCost)
		if err != nil {
			appLogger.Error("Failed to hash password", "error", err)
			os.Exit(1)
		}
		user := &models.User{
			Username: u.username,
			Email:    models.StringPtr(u.email),
			Password: string(hashed),
			Role:     u.role,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			if !errors.Is(err, repositories.ErrDuplicate) {
				appLogger.Error("Failed to create user", "username", u.username, "error", err)
				os.Exit(1)
			}
			appLogger.Warn("User already exists", "username", u.username)
			user, err = userRepo.FindByUsername(ctx, u.username)
			if err != nil {
				appLogger.Error("Failed to load existing user", "username", u.username, "error", err)
				os.Exit(1)
			}
		} else {
			appLogger.Info("Created user", "username", u.username, "id", user.ID)
		}
		users[u.username] = user
	}

	welcome := &models.Post{
		Title:    "Welcome to the forum",
		Content:  "Introduce yourself below. Replies show up live for everyone viewing this thread.",
		AuthorID: users["admin"].ID,
		IsPinned: true,
	}
	if err := forumRepo.CreatePost(ctx, welcome); err != nil {
		appLogger.Error("Failed to create welcome post", "error", err)
		os.Exit(1)
	}

	for _, name := range []string{"alice", "bob"} {
		comment := &models.Comment{
			Content:  "Hi, I'm " + name + "!",
			AuthorID: users[name].ID,
			PostID:   welcome.ID,
		}
		if err := forumRepo.CreateComment(ctx, comment); err != nil {
			appLogger.Error("Failed to create comment", "author", name, "error", err)
			os.Exit(1)
		}
	}

	appLogger.Info("Database seeding completed successfully!", "postID", welcome.ID)
}
