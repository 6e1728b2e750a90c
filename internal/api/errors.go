package api

import (
	"net/http"

	"goelda/domain/core"
	"goelda/internal/errors"

	"github.com/gin-gonic/gin"
)

// statusFor maps an error to its HTTP status and application code.
func statusFor(err error) (int, string) {
	switch {
	case core.IsNotFoundError(err):
		return http.StatusNotFound, errors.CodeNotFound
	case core.IsInputError(err):
		return http.StatusBadRequest, errors.CodeValidationError
	case core.IsFittingError(err):
		return http.StatusUnprocessableEntity, errors.CodeFitFailed
	}
	switch code := errors.GetCode(err); code {
	case errors.CodeInvalidInput, errors.CodeValidationError:
		return http.StatusBadRequest, code
	case errors.CodeNotFound:
		return http.StatusNotFound, code
	}
	return http.StatusInternalServerError, errors.CodeInternalError
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		s.logger.Debug("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}
