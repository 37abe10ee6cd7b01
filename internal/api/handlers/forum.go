package handlers

import (
	"errors"
	"net/http"

	"forum-service/internal/api/middleware"
	"forum-service/internal/models"
	"forum-service/internal/services"
	"forum-service/pkg/logger"
	"forum-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type ForumHandler struct {
	forumService *services.ForumService
	logger       *logger.Logger
}

func NewForumHandler(forumService *services.ForumService, log *logger.Logger) *ForumHandler {
	return &ForumHandler{forumService: forumService, logger: log}
}

// CreateComment godoc
// @Summary Comment on a post
// @Description Adds a comment, or a reply when parentId is set, and pushes it to viewers of the thread
// @Tags forum
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body models.CreateCommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/posts/{id}/comments [post]
func (h *ForumHandler) CreateComment(c *gin.Context) {
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid comment data", err.Error())
		return
	}

	comment, err := h.forumService.CreateComment(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), &req)
	if err != nil {
		h.writeError(c, err, "Failed to create comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// LikePost godoc
// @Summary Toggle a like on a post
// @Tags forum
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.LikeResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/posts/{id}/like [post]
func (h *ForumHandler) LikePost(c *gin.Context) {
	liked, err := h.forumService.TogglePostLike(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to toggle like")
		return
	}
	c.JSON(http.StatusOK, models.LikeResponse{Liked: liked})
}

// LikeComment godoc
// @Summary Toggle a like on a comment
// @Tags forum
// @Produce json
// @Param id path string true "Comment ID"
// @Success 200 {object} models.LikeResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/comments/{id}/like [post]
func (h *ForumHandler) LikeComment(c *gin.Context) {
	liked, err := h.forumService.ToggleCommentLike(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Failed to toggle like")
		return
	}
	c.JSON(http.StatusOK, models.LikeResponse{Liked: liked})
}

func (h *ForumHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		response.Error(c, http.StatusNotFound, "Post not found")
	case errors.Is(err, services.ErrCommentNotFound):
		response.Error(c, http.StatusNotFound, "Comment not found")
	case errors.Is(err, services.ErrPostLocked):
		response.Error(c, http.StatusForbidden, "Post is locked")
	case errors.Is(err, services.ErrInvalidParent):
		response.Error(c, http.StatusBadRequest, "Invalid comment data", err.Error())
	default:
		h.logger.Error(fallback, "path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, fallback)
	}
}
