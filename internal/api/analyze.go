package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/metrics"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

var (
	errMissingFields    = errors.New("missing required fields")
	errInvalidInputType = errors.New("invalid input type")
	errNoRequirements   = errors.New("requirements are required for this stage")
)

// analyzeInput is the transport-neutral form of a JSON or multipart
// /analyze request.
type analyzeInput struct {
	extraction.AnalyzeRequest
	data []byte
}

// Analyze runs one stage synchronously and returns its result. It accepts
// the base64 JSON body RemoteClient sends, or a multipart form with a
// "file" part.
func (h *Handler) Analyze(c *gin.Context) {
	in, err := h.bindAnalyze(c)
	if err != nil {
		abortWithStatus(c, http.StatusBadRequest, err)
		return
	}

	req, err := h.buildAnalyzeRequest(in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.AnalyzeTimeout)
	defer cancel()

	start := time.Now()
	result, err := service.Extract(ctx, h.Client, req, nil)
	if h.Metrics != nil {
		h.Metrics.RecordTiming(metrics.OpAnalyzePrefix+string(req.Stage), time.Since(start), err != nil)
	}
	if err != nil {
		h.Logger.Warn("analyze failed", "stage", req.Stage, "artifact", req.Artifact.Name, "error", err)
		abortWithError(c, err)
		return
	}
	env := models.EncodeResult(result)
	c.JSON(http.StatusOK, extraction.AnalyzeResponse{Result: &env})
}

func (h *Handler) bindAnalyze(c *gin.Context) (analyzeInput, error) {
	var in analyzeInput

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return in, fmt.Errorf("%w: file", errMissingFields)
		}
		if fh.Size > h.MaxUploadBytes {
			return in, fmt.Errorf("upload exceeds %d bytes", h.MaxUploadBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return in, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		if in.data, err = io.ReadAll(f); err != nil {
			return in, fmt.Errorf("read upload: %w", err)
		}
		in.FileName = fh.Filename
		in.FileExt = models.NormalizeExt(fileExt(fh.Filename))
		in.InputType = c.PostForm("inputType")
		in.SourceSystem = c.PostForm("sourceSystem")
		in.DestinationSystem = c.PostForm("destinationSystem")
		in.Stage = c.PostForm("stage")
		return in, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes*4/3+4096)
	if err := c.ShouldBindJSON(&in.AnalyzeRequest); err != nil {
		return in, fmt.Errorf("invalid request body: %w", err)
	}
	if in.FileData == "" {
		return in, fmt.Errorf("%w: fileData", errMissingFields)
	}
	data, err := base64.StdEncoding.DecodeString(in.FileData)
	if err != nil {
		return in, fmt.Errorf("invalid base64 file data: %w", err)
	}
	in.data = data
	return in, nil
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// buildAnalyzeRequest checks the fields a stage needs. Systems are only
// required for fitGap; when given for other stages they must still be
// known.
func (h *Handler) buildAnalyzeRequest(in analyzeInput) (extraction.Request, error) {
	var missing []string
	if in.InputType == "" {
		missing = append(missing, "inputType")
	}
	if in.FileExt == "" {
		missing = append(missing, "fileExt")
	}
	if len(missing) > 0 {
		return extraction.Request{}, badRequest(fmt.Errorf("%w: %s", errMissingFields, strings.Join(missing, ", ")))
	}

	inputType, err := models.ParseInputType(in.InputType)
	if err != nil {
		return extraction.Request{}, badRequest(fmt.Errorf("%w: %q", errInvalidInputType, in.InputType))
	}
	stage := models.StageRequirements
	if in.Stage != "" {
		if stage, err = models.ParseStage(in.Stage); err != nil {
			return extraction.Request{}, badRequest(err)
		}
	}

	ext := models.NormalizeExt(in.FileExt)
	name := in.FileName
	if name == "" || models.NormalizeExt(fileExt(name)) != ext {
		name = "upload." + ext
	}
	artifact := models.NewArtifact(name, inputType, in.data)
	if err := h.Validator.Validate(artifact, inputType); err != nil {
		return extraction.Request{}, err
	}

	req := extraction.Request{Stage: stage, Artifact: artifact}

	hasSystems := in.SourceSystem != "" || in.DestinationSystem != ""
	if stage == models.StageFitGap && (in.SourceSystem == "" || in.DestinationSystem == "") {
		return extraction.Request{}, badRequest(fmt.Errorf("%w: sourceSystem, destinationSystem", errMissingFields))
	}
	if hasSystems {
		if req.Pair, err = h.Catalog.Pair(in.SourceSystem, in.DestinationSystem); err != nil {
			return extraction.Request{}, err
		}
	}

	if stage != models.StageRequirements {
		if len(in.Requirements) == 0 {
			return extraction.Request{}, badRequest(errNoRequirements)
		}
		reqs := &models.RequirementsResult{Requirements: in.Requirements}
		if err := reqs.Validate(); err != nil {
			return extraction.Request{}, badRequest(err)
		}
		req.Requirements = reqs
	}
	return req, nil
}

// requestError forces a 400 regardless of the wrapped error.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{err: err} }
