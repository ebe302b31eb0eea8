package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachdesk/internal/auth"
	"coachdesk/internal/models"
	"coachdesk/internal/repository"
	"coachdesk/internal/service"
)

type TopicHandler struct {
	Topics *service.TopicService
	Settle *service.SettlementService
	Logger *zap.Logger
}

func (h *TopicHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/topics")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/status", h.transition)
	group.POST("/:id/settle", h.settle)
	group.GET("/:id/settlement", h.settlement)
}

type createTopicRequest struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
	MatchID     *string  `json:"match_id"`
	RevealAt    *string  `json:"reveal_at"`
	Reward      int64    `json:"reward"`
}

func (h *TopicHandler) create(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if !auth.IsAdmin(c) {
		Error(c, http.StatusForbidden, "only privileged users may create topics")
		return
	}
	var req createTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body")
		return
	}

	var revealAt *time.Time
	if req.RevealAt != nil && strings.TrimSpace(*req.RevealAt) != "" {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.RevealAt))
		if err != nil {
			Error(c, http.StatusBadRequest, "reveal_at must be RFC3339")
			return
		}
		ts = ts.UTC()
		revealAt = &ts
	}

	topic, err := h.Topics.Create(c.Request.Context(), service.CreateTopicParams{
		Type:        models.TopicType(strings.ToLower(strings.TrimSpace(req.Type))),
		Title:       req.Title,
		Description: req.Description,
		Options:     req.Options,
		MatchID:     req.MatchID,
		RevealAt:    revealAt,
		Reward:      req.Reward,
		CreatorID:   userID,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, topic)
}

func (h *TopicHandler) list(c *gin.Context) {
	var matchID *string
	if v := strings.TrimSpace(c.Query("match_id")); v != "" {
		matchID = &v
	}

	// all=1 is the coach's admin view; default is the active board, which
	// is never paged.
	if c.Query("all") == "1" && auth.IsAdmin(c) {
		params := repository.ListTopicsParams{MatchID: matchID}
		if v := c.Query("limit"); v != "" {
			params.Limit, _ = strconv.Atoi(v)
		}
		if v := c.Query("offset"); v != "" {
			params.Offset, _ = strconv.Atoi(v)
		}
		items, err := h.Topics.List(c.Request.Context(), params)
		if err != nil {
			Fail(c, err)
			return
		}
		OkList(c, items, len(items))
		return
	}

	items, err := h.Topics.ListActive(c.Request.Context(), matchID)
	if err != nil {
		Fail(c, err)
		return
	}
	OkList(c, items, len(items))
}

func (h *TopicHandler) get(c *gin.Context) {
	topic, err := h.Topics.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, topic)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *TopicHandler) transition(c *gin.Context) {
	if !auth.IsAdmin(c) {
		Error(c, http.StatusForbidden, "admin only")
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body")
		return
	}
	topic, err := h.Topics.Transition(c.Request.Context(), c.Param("id"),
		models.TopicStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, topic)
}

type settleRequest struct {
	CorrectChoice string `json:"correct_choice"`
}

func (h *TopicHandler) settle(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := h.Settle.Settle(c.Request.Context(), c.Param("id"),
		strings.TrimSpace(req.CorrectChoice), userID, auth.IsAdmin(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, result)
}

func (h *TopicHandler) settlement(c *gin.Context) {
	item, err := h.Settle.GetByTopic(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item)
}
