package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	InputType         string               `json:"inputType"`
	SourceSystem      string               `json:"sourceSystem"`
	DestinationSystem string               `json:"destinationSystem"`
	FileData          string               `json:"fileData"`
	FileExt           string               `json:"fileExt"`
	FileName          string               `json:"fileName,omitempty"`
	Stage             string               `json:"stage,omitempty"`
	Requirements      []models.Requirement `json:"requirements,omitempty"`
}

// AnalyzeResponse is the body returned by POST /analyze.
type AnalyzeResponse struct {
	Result *models.ResultEnvelope `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// NewAnalyzeRequest encodes req for the wire.
func NewAnalyzeRequest(req Request) AnalyzeRequest {
	body := AnalyzeRequest{
		InputType:         string(req.Artifact.InputType),
		SourceSystem:      req.Pair.Source,
		DestinationSystem: req.Pair.Destination,
		FileData:          base64.StdEncoding.EncodeToString(req.Artifact.Data),
		FileExt:           req.Artifact.Ext,
		FileName:          req.Artifact.Name,
		Stage:             string(req.Stage),
	}
	if req.Requirements != nil {
		body.Requirements = req.Requirements.Requirements
	}
	return body
}

// RemoteClient calls another reqjourney server (or any service speaking
// the same /analyze contract). The remote call reports no progress, so
// progress is synthesized locally.
type RemoteClient struct {
	endpoint   string
	httpClient *http.Client
	ticker     *Ticker
}

// NewRemoteClient targets baseURL; "/analyze" is appended unless present.
func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/analyze") {
		endpoint += "/analyze"
	}
	return &RemoteClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		ticker:     NewTicker(progressInterval),
	}
}

func (c *RemoteClient) Submit(ctx context.Context, req Request) (<-chan Event, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	body, err := json.Marshal(NewAnalyzeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)

		stop := make(chan struct{})
		tickerDone := make(chan struct{})
		go func() {
			defer close(tickerDone)
			c.ticker.Run(ctx, stop, out)
		}()

		result, err := c.execute(ctx, req, body)
		close(stop)
		<-tickerDone

		if err != nil {
			send(ctx, out, Event{Err: err})
			return
		}
		send(ctx, out, Event{Result: result})
	}()
	return out, nil
}

func (c *RemoteClient) execute(ctx context.Context, req Request, body []byte) (models.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var ar AnalyzeResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if resp.StatusCode != http.StatusOK {
		msg := ar.Error
		if msg == "" {
			msg = resp.Status
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %s", ErrFatal, msg)
		}
		return nil, fmt.Errorf("server error: %s", msg)
	}
	if ar.Result == nil {
		return nil, fmt.Errorf("%w: response has no result", models.ErrInvalidResult)
	}

	result, err := ar.Result.Decode()
	if err != nil {
		return nil, err
	}
	if result.Stage() != req.Stage {
		return nil, fmt.Errorf("%w: asked for %s, got %s", models.ErrStageMismatch, req.Stage, result.Stage())
	}
	return result, nil
}
