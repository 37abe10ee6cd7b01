package handlers

import (
	"net/http"

	"forum-service/internal/services"
	"forum-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// OnlineCounter is satisfied by *websocket.Registry.
type OnlineCounter interface {
	OnlineUsers() int
}

type StatsHandler struct {
	forumService *services.ForumService
	online       OnlineCounter
}

func NewStatsHandler(forumService *services.ForumService, online OnlineCounter) *StatsHandler {
	return &StatsHandler{forumService: forumService, online: online}
}

// Community godoc
// @Summary Community stats
// @Description onlineUsers counts distinct users with a live realtime connection
// @Tags stats
// @Produce json
// @Success 200 {object} models.CommunityStats
// @Router /api/stats [get]
func (h *StatsHandler) Community(c *gin.Context) {
	stats, err := h.forumService.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	stats.OnlineUsers = h.online.OnlineUsers()
	c.JSON(http.StatusOK, stats)
}
