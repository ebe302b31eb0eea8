package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coachdesk/internal/auth"
	"coachdesk/internal/service"
)

type PointsHandler struct {
	Points *service.PointsService
}

func (h *PointsHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/me/points", h.mine)
}

func (h *PointsHandler) mine(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated")
		return
	}
	balance, err := h.Points.GetBalance(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := h.Points.History(c.Request.Context(), userID, limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"balance": balance,
		"history": listPayload{Count: len(entries), Items: entries},
	})
}
