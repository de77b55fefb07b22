package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/reqjourney-go/internal/blob"
	"github.com/raphaelgruber/reqjourney-go/internal/db"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
	"github.com/raphaelgruber/reqjourney-go/internal/session"
)

var errHistoryDisabled = errors.New("job history is not configured")

type sessionResponse struct {
	ID string `json:"id"`
	service.State
	ArtifactError string `json:"artifactError,omitempty"`
}

type systemsRequest struct {
	Source      string `json:"source" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

type jobResponse struct {
	Active  *service.JobSnapshot  `json:"active,omitempty"`
	Last    *service.JobSnapshot  `json:"last,omitempty"`
	History []service.JobSnapshot `json:"history"`
}

func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) sessionState(s *session.Session) sessionResponse {
	resp := sessionResponse{ID: s.ID, State: s.Orchestrator.Snapshot()}
	if resp.Artifact != nil {
		var invalid *service.InvalidArtifactError
		if err := s.Orchestrator.ValidateArtifact(); errors.As(err, &invalid) {
			resp.ArtifactError = err.Error()
		}
	}
	return resp
}

// CreateSession starts a session with an empty analysis context.
func (h *Handler) CreateSession(c *gin.Context) {
	s := h.Sessions.Create()
	c.JSON(http.StatusCreated, h.sessionState(s))
}

// GetSession returns the session's current state.
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.sessionState(s))
}

// DeleteSession ends a session. A running job finishes unobserved.
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.Sessions.Delete(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PutArtifact selects the uploaded file as the session's artifact. An
// artifact that fails validation is still selected; the reason is reported
// in artifactError and stage runs are refused.
func (h *Handler) PutArtifact(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("%w: file", errMissingFields))
		return
	}
	if fh.Size > h.MaxUploadBytes {
		abortWithStatus(c, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", h.MaxUploadBytes))
		return
	}
	inputType := models.InputBRD
	if v := c.PostForm("inputType"); v != "" {
		if inputType, err = models.ParseInputType(v); err != nil {
			abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("%w: %q", errInvalidInputType, v))
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	artifact := models.NewArtifact(fh.Filename, inputType, data)
	previous := s.Orchestrator.Artifact()
	ctx := c.Request.Context()

	if h.Blobs != nil {
		if err := h.Blobs.Put(ctx, s.ID, artifact.Name, data, artifact.MIMEType); err != nil {
			h.Logger.Error("failed to store artifact", "session_id", s.ID, "artifact", artifact.Name, "error", err)
			abortWithStatus(c, http.StatusInternalServerError, errors.New("failed to store artifact"))
			return
		}
		if previous != nil && previous.Name != artifact.Name {
			if err := h.Blobs.Delete(ctx, s.ID, previous.Name); err != nil {
				h.Logger.Warn("failed to delete replaced artifact", "session_id", s.ID, "artifact", previous.Name, "error", err)
			}
		}
	}

	s.Orchestrator.SetArtifact(artifact)
	c.JSON(http.StatusOK, h.sessionState(s))
}

// GetArtifact downloads the selected artifact.
func (h *Handler) GetArtifact(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	a := s.Orchestrator.Artifact()
	if a == nil {
		abortWithStatus(c, http.StatusNotFound, service.ErrNoArtifact)
		return
	}

	data := a.Data
	if h.Blobs != nil {
		stored, err := h.Blobs.Get(c.Request.Context(), s.ID, a.Name)
		switch {
		case err == nil:
			data = stored
		case !errors.Is(err, blob.ErrNotFound):
			h.Logger.Warn("artifact store read failed, serving from memory", "session_id", s.ID, "error", err)
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	contentType := a.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

// DeleteArtifact clears the artifact and every cached result.
func (h *Handler) DeleteArtifact(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if a := s.Orchestrator.Artifact(); a != nil && h.Blobs != nil {
		if err := h.Blobs.Delete(c.Request.Context(), s.ID, a.Name); err != nil {
			h.Logger.Warn("failed to delete artifact", "session_id", s.ID, "artifact", a.Name, "error", err)
		}
	}
	s.Orchestrator.RemoveArtifact()
	c.JSON(http.StatusOK, h.sessionState(s))
}

// PutSystems selects the fit-gap system pair.
func (h *Handler) PutSystems(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req systemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.Orchestrator.SetSystemPair(models.SystemPair{Source: req.Source, Destination: req.Destination}); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sessionState(s))
}

// RunStage starts a stage and answers 202 with the new job.
func (h *Handler) RunStage(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	stage, err := models.ParseStage(c.Param("stage"))
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	job, err := s.Orchestrator.RunStage(c.Request.Context(), stage)
	if err != nil {
		abortWithStatus(c, runStatus(err), err)
		return
	}
	c.JSON(http.StatusAccepted, job.Snapshot())
}

// GetResult returns the cached result for a stage.
func (h *Handler) GetResult(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	stage, err := models.ParseStage(c.Param("stage"))
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}
	result, found := s.Orchestrator.Result(stage)
	if !found {
		abortWithStatus(c, http.StatusNotFound, fmt.Errorf("no %s result", stage))
		return
	}
	c.JSON(http.StatusOK, models.EncodeResult(result))
}

// GetSessionJob returns the active and last finished job.
func (h *Handler) GetSessionJob(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	resp := jobResponse{History: s.Orchestrator.Tracker().History()}
	if job, ok := s.Orchestrator.ActiveJob(); ok {
		snap := job.Snapshot()
		resp.Active = &snap
	}
	if job, ok := s.Orchestrator.LastJob(); ok {
		snap := job.Snapshot()
		resp.Last = &snap
	}
	c.JSON(http.StatusOK, resp)
}

// ListJobs returns persisted job history, newest first. Query parameters
// stage, status, context and limit narrow the list.
func (h *Handler) ListJobs(c *gin.Context) {
	if h.History == nil {
		abortWithStatus(c, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	f := db.JobFilter{
		Status:    c.Query("status"),
		ContextID: c.Query("context"),
	}
	if v := c.Query("stage"); v != "" {
		stage, err := models.ParseStage(v)
		if err != nil {
			abortWithStatus(c, http.StatusBadRequest, err)
			return
		}
		f.Stage = string(stage)
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortWithStatus(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		f.Limit = n
	}

	jobs, err := h.History.ListJobs(c.Request.Context(), f)
	if err != nil {
		h.Logger.Error("failed to list jobs", "error", err)
		abortWithStatus(c, http.StatusInternalServerError, errors.New("failed to list jobs"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": toJobRecords(jobs)})
}

// GetJob returns one persisted job.
func (h *Handler) GetJob(c *gin.Context) {
	if h.History == nil {
		abortWithStatus(c, http.StatusServiceUnavailable, errHistoryDisabled)
		return
	}
	job, err := h.History.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			abortWithStatus(c, http.StatusNotFound, err)
			return
		}
		abortWithStatus(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, toJobRecord(*job))
}
