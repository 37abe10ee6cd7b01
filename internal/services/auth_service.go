package services

import (
	"context"
	"errors"
	"fmt"

	"forum-service/internal/models"
	"forum-service/internal/repositories"
	"forum-service/internal/session"
	"forum-service/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SessionStore is the writable side of the session store. Only the auth
// flow creates and destroys sessions.
type SessionStore interface {
	Create(ctx context.Context, identity session.Identity) (string, error)
	Destroy(ctx context.Context, sessionID string) error
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	logger   *logger.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, log *logger.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		logger:   log,
	}
}

func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserResponse, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			s.logger.Info("Registration rejected: user exists", "username", req.Username)
			return nil, ErrUserAlreadyExists
		}
		s.logger.Error("Registration failed", "username", req.Username, "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", "userID", user.ID, "username", user.Username)
	resp := user.ToResponse()
	return &resp, nil
}

// Login checks the credentials and opens a session, returning its id.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.UserResponse, string, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	sid, err := s.sessions.Create(ctx, session.Identity{ID: user.ID, Username: user.Username, Role: user.Role})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("User logged in", "userID", user.ID)
	resp := user.ToResponse()
	return &resp, sid, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}
