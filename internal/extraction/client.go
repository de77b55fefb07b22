// Package extraction provides clients for the capability that turns an
// artifact into requirements, user stories and fit-gap entries.
package extraction

import (
	"context"
	"errors"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// ErrFatal marks failures that retrying will not fix (bad credentials,
// exhausted quota, unsupported input).
var ErrFatal = errors.New("fatal extraction error")

// Request is one stage submission.
type Request struct {
	Stage        models.Stage
	Artifact     *models.Artifact
	Requirements *models.RequirementsResult // userStories, fitGap
	Pair         models.SystemPair          // fitGap
}

// Event is one message on a submission stream. Progress events carry only
// Progress. The terminal event carries either Result or Err.
type Event struct {
	Progress int
	Result   models.Result
	Err      error
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Result != nil || e.Err != nil
}

// Client submits a stage request and streams its progress. Implementations
// send zero or more progress events, exactly one terminal event, then close
// the channel. Sends must give up when ctx is done.
type Client interface {
	Submit(ctx context.Context, req Request) (<-chan Event, error)
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func validateRequest(req Request) error {
	if req.Artifact == nil {
		return errors.New("request has no artifact")
	}
	switch req.Stage {
	case models.StageRequirements:
	case models.StageUserStories:
		if req.Requirements == nil {
			return errors.New("user stories need requirements")
		}
	case models.StageFitGap:
		if req.Requirements == nil || req.Pair.IsZero() {
			return errors.New("fit-gap needs requirements and a system pair")
		}
	default:
		return errors.New("unknown stage: " + string(req.Stage))
	}
	return nil
}
