package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// ErrorKind classifies orchestrator failures for callers that map them onto
// transport status codes.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindNoArtifact      ErrorKind = "no_artifact"
	KindInvalidArtifact ErrorKind = "invalid_artifact"
	KindDependency      ErrorKind = "dependency_missing"
	KindAlreadyRunning  ErrorKind = "already_running"
	KindService         ErrorKind = "service_error"
)

var (
	ErrNoArtifact     = errors.New("no artifact selected")
	ErrAlreadyRunning = errors.New("an analysis job is already running")
)

// Rejection reasons reported by the artifact validator.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNoFileSelected    = errors.New("no file selected")
)

// InvalidArtifactError reports why the selected artifact cannot be analyzed.
type InvalidArtifactError struct {
	Reason error
	Detail string
}

func (e *InvalidArtifactError) Error() string {
	if e.Detail == "" {
		return "invalid artifact: " + e.Reason.Error()
	}
	return fmt.Sprintf("invalid artifact: %v: %s", e.Reason, e.Detail)
}

func (e *InvalidArtifactError) Unwrap() error { return e.Reason }

// DependencyMissingError names the stage that could not start and what it
// was waiting on.
type DependencyMissingError struct {
	Stage   models.Stage
	Missing []string
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Stage, strings.Join(e.Missing, " and "))
}

// Service error kinds.
const (
	ServiceKindUpstream      = "upstream"
	ServiceKindFatal         = "fatal"
	ServiceKindInvalidResult = "invalid_result"
	ServiceKindTimeout       = "timeout"
	ServiceKindStream        = "stream"
)

// ServiceError is the failure recorded on a job when extraction fails.
type ServiceError struct {
	Message string
	Kind    string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError wraps err, keeping its text as the message.
func NewServiceError(kind string, err error) *ServiceError {
	return &ServiceError{Message: err.Error(), Kind: kind, Err: err}
}

// KindOf maps err onto an ErrorKind. Unknown errors are service errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var (
		invalid *InvalidArtifactError
		dep     *DependencyMissingError
	)
	switch {
	case errors.Is(err, ErrNoArtifact):
		return KindNoArtifact
	case errors.Is(err, ErrAlreadyRunning):
		return KindAlreadyRunning
	case errors.As(err, &invalid):
		return KindInvalidArtifact
	case errors.As(err, &dep):
		return KindDependency
	}
	return KindService
}
