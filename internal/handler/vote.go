package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coachdesk/internal/auth"
	"coachdesk/internal/models"
	"coachdesk/internal/service"
)

type VoteHandler struct {
	Votes  *service.VoteService
	Logger *zap.Logger
}

func (h *VoteHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/topics/:id/votes", h.submit)
	r.GET("/api/v1/topics/:id/votes", h.listByTopic)
	r.GET("/api/v1/topics/:id/stats", h.stats)
	r.GET("/api/v1/me/votes", h.listMine)
}

type submitVoteRequest struct {
	Choice    string `json:"choice"`
	Stake     int64  `json:"stake"`
	Anonymous bool   `json:"anonymous"`
}

// voteView is the public shape of a participation record; the true user id
// never leaves the server.
type voteView struct {
	VoterIdentity string    `json:"voter_identity"`
	Anonymous     bool      `json:"anonymous"`
	Choice        string    `json:"choice"`
	Stake         int64     `json:"stake"`
	CreatedAt     time.Time `json:"created_at"`
}

func toVoteView(rec models.Participation) voteView {
	return voteView{
		VoterIdentity: rec.VoterIdentity,
		Anonymous:     rec.Anonymous,
		Choice:        rec.Choice,
		Stake:         rec.Stake,
		CreatedAt:     rec.CreatedAt,
	}
}

func (h *VoteHandler) submit(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req submitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body")
		return
	}
	rec, err := h.Votes.Submit(c.Request.Context(), service.SubmitParams{
		TopicID:   c.Param("id"),
		UserID:    userID,
		Choice:    req.Choice,
		Stake:     req.Stake,
		Anonymous: req.Anonymous,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toVoteView(*rec))
}

func (h *VoteHandler) listByTopic(c *gin.Context) {
	records, err := h.Votes.ListByTopic(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	views := make([]voteView, 0, len(records))
	for _, rec := range records {
		views = append(views, toVoteView(rec))
	}
	OkList(c, views, len(views))
}

func (h *VoteHandler) stats(c *gin.Context) {
	stats, err := h.Votes.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, stats)
}

// myVoteView includes the topic snapshot taken at participation time.
type myVoteView struct {
	TopicID    string           `json:"topic_id"`
	TopicTitle string           `json:"topic_title"`
	TopicType  models.TopicType `json:"topic_type"`
	Choice     string           `json:"choice"`
	Stake      int64            `json:"stake"`
	Anonymous  bool             `json:"anonymous"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (h *VoteHandler) listMine(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated")
		return
	}
	records, err := h.Votes.ListByUser(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	views := make([]myVoteView, 0, len(records))
	for _, rec := range records {
		views = append(views, myVoteView{
			TopicID:    rec.TopicID,
			TopicTitle: rec.TopicTitle,
			TopicType:  rec.TopicType,
			Choice:     rec.Choice,
			Stake:      rec.Stake,
			Anonymous:  rec.Anonymous,
			CreatedAt:  rec.CreatedAt,
		})
	}
	OkList(c, views, len(views))
}
