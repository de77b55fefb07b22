package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/reqjourney-go/internal/llm"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

func brdArtifact() *models.Artifact {
	return models.NewArtifact("spec.txt", models.InputBRD, []byte("System must support multi-currency transactions."))
}

// collect drains a submission stream.
func collect(t *testing.T, ch <-chan Event) (progress []int, terminal Event) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return progress, terminal
			}
			if ev.Terminal() {
				terminal = ev
				continue
			}
			progress = append(progress, ev.Progress)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go:\n{\"a\":1}\nThanks!", `{"a":1}`},
		{"array", "```\n[1,2]\n```", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestParseResult(t *testing.T) {
	t.Run("requirements normalize priority", func(t *testing.T) {
		r, err := ParseResult(models.StageRequirements,
			"```json\n{\"requirements\":[{\"id\":\"REQ-001\",\"description\":\" Multi-currency \",\"priority\":\"high\",\"source\":\"BRD p.12\"}]}\n```",
			models.SystemPair{})
		require.NoError(t, err)
		reqs := r.(*models.RequirementsResult)
		require.Len(t, reqs.Requirements, 1)
		assert.Equal(t, models.PriorityHigh, reqs.Requirements[0].Priority)
		assert.Equal(t, "Multi-currency", reqs.Requirements[0].Description)
	})

	t.Run("bare array of stories", func(t *testing.T) {
		r, err := ParseResult(models.StageUserStories,
			`[{"story":"As a CFO...","priority":"Medium","related":"REQ-004"}]`, models.SystemPair{})
		require.NoError(t, err)
		stories := r.(*models.UserStoriesResult)
		require.Len(t, stories.Stories, 1)
		assert.Equal(t, "US-001", stories.Stories[0].ID)
	})

	t.Run("fit-gap stamps the pair", func(t *testing.T) {
		r, err := ParseResult(models.StageFitGap,
			`{"fitGap":[{"requirement":"REQ-003","fit":"no","gap":"Custom integration required","effort":"HIGH"}]}`,
			models.DefaultSystemPair)
		require.NoError(t, err)
		fg := r.(*models.FitGapResult)
		require.Len(t, fg.Entries, 1)
		assert.Equal(t, models.SystemOracleERP, fg.Entries[0].Source)
		assert.Equal(t, models.SystemD365FO, fg.Entries[0].Destination)
		assert.Equal(t, models.FitNo, fg.Entries[0].Fit)
	})

	t.Run("unknown fit is rejected", func(t *testing.T) {
		_, err := ParseResult(models.StageFitGap,
			`{"fitGap":[{"requirement":"REQ-003","fit":"maybe","effort":"Low"}]}`, models.DefaultSystemPair)
		assert.ErrorIs(t, err, models.ErrInvalidResult)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseResult(models.StageRequirements, "I could not find requirements.", models.SystemPair{})
		assert.ErrorIs(t, err, models.ErrInvalidResult)
	})
}

func TestByteProgress(t *testing.T) {
	prev := 0
	for n := 0; n <= 10_000; n += 250 {
		p := byteProgress(n, 1000)
		assert.GreaterOrEqual(t, p, prev)
		assert.Less(t, p, progressCap+1)
		prev = p
	}
	assert.Equal(t, 0, byteProgress(0, 1000))
}

func TestTicker_CapsAt95(t *testing.T) {
	tk := &Ticker{Interval: time.Millisecond, rand: func() float64 { return 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Event)
	stop := make(chan struct{})
	go tk.Run(ctx, stop, out)

	var last int
	for range 15 {
		ev := <-out
		assert.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
	}
	close(stop)
	assert.Equal(t, progressCap, last)
}

func TestDemoClient_Requirements(t *testing.T) {
	c := &DemoClient{Steps: 3}
	ch, err := c.Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: brdArtifact()})
	require.NoError(t, err)

	progress, term := collect(t, ch)
	assert.Len(t, progress, 3)
	require.NoError(t, term.Err)
	reqs := term.Result.(*models.RequirementsResult)
	assert.Equal(t, []string{"REQ-001", "REQ-002", "REQ-003", "REQ-004", "REQ-005"}, reqs.IDs())
}

func TestDemoClient_StoriesFollowRequirements(t *testing.T) {
	reqs := &models.RequirementsResult{Requirements: []models.Requirement{
		{ID: "REQ-002", Description: "Approvals", Priority: models.PriorityMedium},
		{ID: "REQ-042", Description: "audit trails", Priority: models.PriorityLow},
	}}
	res := DemoResult(Request{Stage: models.StageUserStories, Artifact: brdArtifact(), Requirements: reqs})

	stories := res.(*models.UserStoriesResult)
	require.NoError(t, stories.ValidateAgainst(reqs))
	assert.Equal(t, "US-002", stories.Stories[0].ID)
	assert.Equal(t, "REQ-042", stories.Stories[1].Related)
}

func TestDemoClient_Fail(t *testing.T) {
	c := &DemoClient{Steps: 1, Fail: errors.New("upstream down")}
	ch, err := c.Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: brdArtifact()})
	require.NoError(t, err)

	_, term := collect(t, ch)
	assert.EqualError(t, term.Err, "upstream down")
}

func TestDemoClient_RejectsIncompleteRequest(t *testing.T) {
	_, err := NewDemoClient().Submit(context.Background(), Request{Stage: models.StageFitGap, Artifact: brdArtifact()})
	assert.Error(t, err)
}

type fakeGenerator struct {
	text   string
	err    error
	chunks []string
	got    llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.got = req
	for _, c := range f.chunks {
		if req.OnChunk != nil {
			req.OnChunk([]byte(c))
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text, InputTokens: 10, OutputTokens: 5}, nil
}

func (f *fakeGenerator) Model() string { return "fake" }

type usageSpy struct {
	calls int
	stage models.Stage
}

func (u *usageSpy) RecordLLMUsage(stage models.Stage, _ string, _ time.Duration, _, _ int, _ error) {
	u.calls++
	u.stage = stage
}

func TestLLMClient_Requirements(t *testing.T) {
	gen := &fakeGenerator{
		chunks: []string{strings.Repeat("x", 500), strings.Repeat("y", 500)},
		text:   `{"requirements":[{"id":"REQ-001","description":"Multi-currency","priority":"High","source":"Part 1"}]}`,
	}
	usage := &usageSpy{}
	c := NewLLMClient(gen, 0.1, usage, nil)

	ch, err := c.Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: brdArtifact()})
	require.NoError(t, err)

	progress, term := collect(t, ch)
	require.NoError(t, term.Err)
	assert.Len(t, progress, 2)
	assert.Less(t, progress[0], progress[1])
	assert.Equal(t, 1, term.Result.Len())

	assert.True(t, gen.got.JSON)
	assert.InDelta(t, 0.1, gen.got.Temperature, 1e-9)
	assert.Contains(t, gen.got.Prompt, "multi-currency transactions")
	assert.Empty(t, gen.got.Media)
	assert.Equal(t, 1, usage.calls)
	assert.Equal(t, models.StageRequirements, usage.stage)
}

func TestLLMClient_MediaIsAttached(t *testing.T) {
	gen := &fakeGenerator{text: `{"requirements":[]}`}
	c := NewLLMClient(gen, 0.1, nil, nil)
	video := models.NewArtifact("standup.mp4", models.InputVideo, []byte{0, 0, 0, 1})

	ch, err := c.Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: video})
	require.NoError(t, err)
	_, term := collect(t, ch)
	require.NoError(t, term.Err)

	require.Len(t, gen.got.Media, 1)
	assert.Equal(t, "video/mp4", gen.got.Media[0].MIMEType)
	assert.Contains(t, gen.got.Prompt, "attached video recording")
}

func TestLLMClient_FatalError(t *testing.T) {
	gen := &fakeGenerator{err: llm.ErrFatalAPI}
	c := NewLLMClient(gen, 0.1, nil, nil)

	ch, err := c.Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: brdArtifact()})
	require.NoError(t, err)
	_, term := collect(t, ch)
	assert.ErrorIs(t, term.Err, ErrFatal)
}

func TestLLMClient_UndecodableDocument(t *testing.T) {
	c := NewLLMClient(&fakeGenerator{}, 0.1, nil, nil)
	a := models.NewArtifact("empty.txt", models.InputBRD, []byte("   "))

	ch, err := c.Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: a})
	require.NoError(t, err)
	progress, term := collect(t, ch)
	assert.Empty(t, progress)
	assert.ErrorIs(t, term.Err, ErrFatal)
}

func TestLLMClient_FitGapPrompt(t *testing.T) {
	gen := &fakeGenerator{text: `{"fitGap":[]}`}
	c := NewLLMClient(gen, 0.1, nil, nil)
	reqs := &models.RequirementsResult{Requirements: []models.Requirement{{ID: "REQ-001", Description: "Multi-currency", Priority: models.PriorityHigh}}}

	ch, err := c.Submit(context.Background(), Request{
		Stage: models.StageFitGap, Artifact: brdArtifact(), Requirements: reqs, Pair: models.DefaultSystemPair,
	})
	require.NoError(t, err)
	_, term := collect(t, ch)
	require.NoError(t, term.Err)

	assert.Contains(t, gen.got.Prompt, "from Oracle ERP to D365 F&O")
	assert.Contains(t, gen.got.Prompt, `"id": "REQ-001"`)
}

func TestRemoteClient(t *testing.T) {
	var got AnalyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		res := models.EncodeResult(DemoResult(Request{Stage: models.StageRequirements}))
		_ = json.NewEncoder(w).Encode(AnalyzeResponse{Result: &res})
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, 5*time.Second)
	ch, err := c.Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: brdArtifact()})
	require.NoError(t, err)

	_, term := collect(t, ch)
	require.NoError(t, term.Err)
	assert.Equal(t, 5, term.Result.Len())
	assert.Equal(t, "BRD", got.InputType)
	assert.Equal(t, "txt", got.FileExt)
	assert.Equal(t, "requirements", got.Stage)
}

func TestRemoteClient_ClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		_ = json.NewEncoder(w).Encode(AnalyzeResponse{Error: "Unsupported file type"})
	}))
	defer srv.Close()

	ch, err := NewRemoteClient(srv.URL+"/analyze", 5*time.Second).
		Submit(context.Background(), Request{Stage: models.StageRequirements, Artifact: brdArtifact()})
	require.NoError(t, err)

	_, term := collect(t, ch)
	assert.ErrorIs(t, term.Err, ErrFatal)
	assert.Contains(t, term.Err.Error(), "Unsupported file type")
}

func TestRemoteClient_StageMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(AnalyzeResponse{Result: &models.ResultEnvelope{Stage: models.StageRequirements}})
	}))
	defer srv.Close()

	reqs := &models.RequirementsResult{Requirements: []models.Requirement{{ID: "REQ-001", Priority: models.PriorityHigh}}}
	ch, err := NewRemoteClient(srv.URL, 5*time.Second).Submit(context.Background(), Request{
		Stage: models.StageUserStories, Artifact: brdArtifact(), Requirements: reqs,
	})
	require.NoError(t, err)

	_, term := collect(t, ch)
	assert.ErrorIs(t, term.Err, models.ErrStageMismatch)
}
