package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Every endpoint answers with the same envelope. Code is zero on success and
// mirrors the HTTP status on failure so clients can switch on one field.
type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// listPayload carries collections so the count travels with the items.
type listPayload struct {
	Count int `json:"count"`
	Items any `json:"items"`
}

func Ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Message: "ok", Data: data})
}

func OkList(c *gin.Context, items any, count int) {
	Ok(c, listPayload{Count: count, Items: items})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, apiResponse{Code: status, Message: message})
}
