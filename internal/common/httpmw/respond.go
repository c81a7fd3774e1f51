package httpmw

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// AbortWithError writes {error, type} using the AppError status and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error": appErr.Message,
		"type":  appErr.Code,
	})
}

// BadRequest is shorthand for a PRECONDITION error.
func BadRequest(c *gin.Context, message string) {
	AbortWithError(c, apperrors.Precondition(message))
}
