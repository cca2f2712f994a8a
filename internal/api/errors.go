package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/middleware"
	"github.com/oncoprint-server/internal/trackgroups"
	"github.com/sirupsen/logrus"
)

// statusOf maps an error to its HTTP status and error code
func statusOf(err error) (int, string) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, domain.ErrValidation
	case errors.Is(err, domain.ErrUnknownDownload), errors.Is(err, trackgroups.ErrUnknownProfile):
		return http.StatusBadRequest, domain.ErrInvalidInput
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict, domain.ErrDataNotReady
	case errors.Is(err, domain.ErrUnsupportedExport), errors.Is(err, domain.ErrNoRenderer):
		return http.StatusNotImplemented, domain.ErrExportUnavailable
	case errors.Is(err, domain.ErrInvariant):
		return http.StatusBadGateway, domain.ErrInvariantViolation
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.ErrTimeout
	}
	return http.StatusInternalServerError, domain.ErrInternalServer
}

// respondError aborts the request with a standardized error body
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
		s.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.RequestIDKey),
			"error":      err,
		}).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, domain.NewOncoprintError(code, message, err.Error(), c.GetString(middleware.RequestIDKey)))
}

// respondCode aborts the request with an explicit status and code
func respondCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, domain.NewOncoprintError(code, message, "", c.GetString(middleware.RequestIDKey)))
}
