package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/domain"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError renders the uniform error envelope, mapping the domain error
// taxonomy onto status classes.
func respondError(c *gin.Context, err error) {
	if v := domain.AsValidation(err); v != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errorBody{Message: v.Message, Code: v.Code}})
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": errorBody{Message: "not found", Code: "NOT_FOUND"}})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": errorBody{Message: "forbidden", Code: "FORBIDDEN"}})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": errorBody{Message: "conflict, retry the request", Code: "CONFLICT"}})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": errorBody{Message: "internal error", Code: "INTERNAL"}})
	}
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errorBody{Message: message, Code: "BAD_REQUEST"}})
}
