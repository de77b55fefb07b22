package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/reqjourney-go/internal/blob"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/parser"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
	"github.com/raphaelgruber/reqjourney-go/internal/session"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func newErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: err.Error()}
	if kind := service.KindOf(err); kind != service.KindService {
		resp.Kind = string(kind)
	}

	var (
		invalid *service.InvalidArtifactError
		dep     *service.DependencyMissingError
		svcErr  *service.ServiceError
	)
	switch {
	case errors.As(err, &invalid):
		resp.Reason = invalid.Reason.Error()
	case errors.As(err, &dep):
		resp.Missing = dep.Missing
	case errors.As(err, &svcErr):
		resp.Kind = string(service.KindService)
		resp.Reason = svcErr.Kind
	}
	return resp
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		reqErr *requestError
		svcErr *service.ServiceError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnsupportedFormat), errors.Is(err, parser.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, parser.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnknownSystem):
		return http.StatusBadRequest
	case errors.As(err, &svcErr):
		if svcErr.Kind == service.ServiceKindTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}

	return runStatus(err)
}

// runStatus maps RunStage precondition failures, which are all reported
// the same way regardless of the artifact rejection reason.
func runStatus(err error) int {
	switch service.KindOf(err) {
	case service.KindNoArtifact, service.KindInvalidArtifact:
		return http.StatusBadRequest
	case service.KindAlreadyRunning:
		return http.StatusConflict
	case service.KindDependency:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	abortWithStatus(c, statusFor(err), err)
}

func abortWithStatus(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, newErrorResponse(err))
}
