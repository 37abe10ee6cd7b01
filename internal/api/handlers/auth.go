package handlers

import (
	"errors"
	"net/http"

	"forum-service/internal/api/middleware"
	"forum-service/internal/models"
	"forum-service/internal/services"
	"forum-service/internal/session"
	"forum-service/pkg/logger"
	"forum-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
	codec       *session.CookieCodec
	resolver    *session.Resolver
	logger      *logger.Logger
}

func NewAuthHandler(authService *services.AuthService, codec *session.CookieCodec, resolver *session.Resolver, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		codec:       codec,
		resolver:    resolver,
		logger:      log,
	}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "User registration data"
// @Success 201 {object} models.UserResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid input data", err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrUserAlreadyExists) {
			response.Error(c, http.StatusConflict, "User already exists")
			return
		}
		response.Error(c, http.StatusInternalServerError, "Register failed", "An unexpected error occurred.")
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary User login
// @Description Checks credentials and sets the session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "User login credentials"
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid input data", err.Error())
		return
	}

	user, sid, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		h.logger.Error("Login failed", "username", req.Username, "error", err)
		response.Error(c, http.StatusInternalServerError, "Login failed")
		return
	}

	value, err := h.codec.Encode(sid)
	if err != nil {
		h.logger.Error("Failed to sign session cookie", "userID", user.ID, "error", err)
		response.Error(c, http.StatusInternalServerError, "Login failed")
		return
	}
	http.SetCookie(c.Writer, h.codec.Cookie(value))
	c.JSON(http.StatusOK, user)
}

// Logout godoc
// @Summary Log out
// @Description Destroys the session and clears the cookie
// @Tags auth
// @Success 204
// @Router /api/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if sid, err := h.resolver.SessionID(c.GetHeader("Cookie")); err == nil {
		if err := h.authService.Logout(c.Request.Context(), sid); err != nil {
			h.logger.Error("Failed to destroy session", "error", err)
		}
	}
	http.SetCookie(c.Writer, h.codec.Expired())
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/user [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	user, err := h.authService.Profile(c.Request.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			response.Error(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, user)
}
