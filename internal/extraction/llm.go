package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/reqjourney-go/internal/llm"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
	"github.com/raphaelgruber/reqjourney-go/internal/parser"
)

// maxMaterialBytes bounds the document text placed in a prompt.
const maxMaterialBytes = 120_000

// UsageRecorder receives per-call model timings and token counts.
type UsageRecorder interface {
	RecordLLMUsage(stage models.Stage, model string, d time.Duration, inputTokens, outputTokens int, err error)
}

// LLMClient runs extraction through a language model. Documents are decoded
// to text; audio and video go to the model as media attachments.
type LLMClient struct {
	gen         llm.Generator
	temperature float64
	usage       UsageRecorder
	logger      *slog.Logger
}

func NewLLMClient(gen llm.Generator, temperature float64, usage UsageRecorder, logger *slog.Logger) *LLMClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClient{gen: gen, temperature: temperature, usage: usage, logger: logger}
}

func (c *LLMClient) Submit(ctx context.Context, req Request) (<-chan Event, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)

		// Decoding a large pdf or xlsx is slow, so it runs with the job.
		genReq, err := c.buildRequest(req)
		if err != nil {
			send(ctx, out, Event{Err: err})
			return
		}

		expected := expectedOutputBytes(req)
		var (
			mu       sync.Mutex
			received int
			last     int
		)
		genReq.OnChunk = func(chunk []byte) {
			mu.Lock()
			received += len(chunk)
			p := byteProgress(received, expected)
			emit := p > last
			if emit {
				last = p
			}
			mu.Unlock()
			if emit {
				send(ctx, out, Event{Progress: p})
			}
		}

		start := time.Now()
		resp, err := c.gen.Generate(ctx, genReq)
		if c.usage != nil {
			var in, outTok int
			if resp != nil {
				in, outTok = resp.InputTokens, resp.OutputTokens
			}
			c.usage.RecordLLMUsage(req.Stage, c.gen.Model(), time.Since(start), in, outTok, err)
		}
		if err != nil {
			if errors.Is(err, llm.ErrFatalAPI) {
				err = fmt.Errorf("%w: %w", ErrFatal, err)
			}
			send(ctx, out, Event{Err: err})
			return
		}

		result, err := ParseResult(req.Stage, resp.Text, req.Pair)
		if err != nil {
			c.logger.Debug("unparseable model output", "stage", req.Stage, "output", resp.Text)
			send(ctx, out, Event{Err: err})
			return
		}
		send(ctx, out, Event{Result: result})
	}()
	return out, nil
}

func (c *LLMClient) buildRequest(req Request) (llm.Request, error) {
	genReq := llm.Request{
		System:      systemPrompt,
		JSON:        true,
		Temperature: c.temperature,
	}

	var material string
	if req.Stage == models.StageRequirements {
		a := req.Artifact
		if parser.IsMedia(a.Ext) {
			genReq.Media = []llm.Media{{MIMEType: a.MIMEType, Data: a.Data}}
		} else {
			doc, err := parser.Decode(a.Data, a.Ext)
			if err != nil {
				return llm.Request{}, fmt.Errorf("%w: %w", ErrFatal, err)
			}
			if doc.Truncate(maxMaterialBytes) {
				c.logger.Warn("document truncated for prompt", "artifact", a.Name, "limit", maxMaterialBytes)
			}
			material = doc.Text()
		}
	}

	prompt, err := buildPrompt(req, material)
	if err != nil {
		return llm.Request{}, err
	}
	genReq.Prompt = prompt
	return genReq, nil
}
