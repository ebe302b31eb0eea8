package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coachdesk/internal/auth"
	"coachdesk/internal/config"
)

// TokenHandler issues dev bearer tokens when auth.dev_issuer is enabled, so
// the API can be driven without the platform gateway in front of it.
type TokenHandler struct {
	Cfg config.AuthConfig
}

func (h *TokenHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/auth/token", h.issue)
}

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *TokenHandler) issue(c *gin.Context) {
	if !h.Cfg.DevIssuer {
		Error(c, http.StatusNotFound, "not found")
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		Error(c, http.StatusBadRequest, "user_id required")
		return
	}
	role := auth.RoleUser
	if strings.EqualFold(strings.TrimSpace(req.Role), auth.RoleAdmin) {
		role = auth.RoleAdmin
	}
	token, err := auth.SignToken(h.Cfg, req.UserID, role)
	if err != nil {
		Error(c, http.StatusInternalServerError, "token signing failed")
		return
	}
	Ok(c, gin.H{"token": token, "role": role})
}
