package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for model validation.
var (
	ErrUnknownSystem     = errors.New("unknown system")
	ErrUnknownReference  = errors.New("unknown requirement reference")
	ErrInvalidResult     = errors.New("invalid result")
	ErrStageMismatch     = errors.New("result stage mismatch")
	ErrDuplicateEntryKey = errors.New("duplicate identifier")
)

// Requirement is one extracted business requirement.
type Requirement struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Source      string   `json:"source,omitempty"`
}

// UserStory derives from exactly one requirement.
type UserStory struct {
	ID       string   `json:"id"`
	Story    string   `json:"story"`
	Priority Priority `json:"priority"`
	Related  string   `json:"related"`
}

// FitGapEntry assesses one requirement against a system pair.
type FitGapEntry struct {
	Requirement string `json:"requirement"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Fit         Fit    `json:"fit"`
	Gap         string `json:"gap"`
	Effort      Effort `json:"effort"`
}

// Result is the output of one stage. Implementations are
// *RequirementsResult, *UserStoriesResult and *FitGapResult.
type Result interface {
	Stage() Stage
	Len() int
	isResult()
}

type RequirementsResult struct {
	Requirements []Requirement `json:"requirements"`
}

type UserStoriesResult struct {
	Stories []UserStory `json:"userStories"`
}

type FitGapResult struct {
	Pair    SystemPair    `json:"pair"`
	Entries []FitGapEntry `json:"entries"`
}

func (*RequirementsResult) Stage() Stage { return StageRequirements }
func (*UserStoriesResult) Stage() Stage  { return StageUserStories }
func (*FitGapResult) Stage() Stage       { return StageFitGap }

func (r *RequirementsResult) Len() int { return len(r.Requirements) }
func (r *UserStoriesResult) Len() int  { return len(r.Stories) }
func (r *FitGapResult) Len() int       { return len(r.Entries) }

func (*RequirementsResult) isResult() {}
func (*UserStoriesResult) isResult()  {}
func (*FitGapResult) isResult()       {}

// IDs returns the requirement identifiers in order.
func (r *RequirementsResult) IDs() []string {
	ids := make([]string, len(r.Requirements))
	for i, req := range r.Requirements {
		ids[i] = req.ID
	}
	return ids
}

// Has reports whether id names a requirement in this set.
func (r *RequirementsResult) Has(id string) bool {
	for _, req := range r.Requirements {
		if req.ID == id {
			return true
		}
	}
	return false
}

// Validate checks identifiers are present and unique, and priorities known.
func (r *RequirementsResult) Validate() error {
	seen := make(map[string]struct{}, len(r.Requirements))
	for i, req := range r.Requirements {
		if req.ID == "" {
			return fmt.Errorf("%w: requirement %d has no id", ErrInvalidResult, i)
		}
		if _, dup := seen[req.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateEntryKey, req.ID)
		}
		seen[req.ID] = struct{}{}
		if !req.Priority.Valid() {
			return fmt.Errorf("%w: requirement %s has priority %q", ErrInvalidResult, req.ID, req.Priority)
		}
	}
	return nil
}

// ValidateAgainst checks every story resolves to a requirement in reqs.
func (r *UserStoriesResult) ValidateAgainst(reqs *RequirementsResult) error {
	seen := make(map[string]struct{}, len(r.Stories))
	for _, s := range r.Stories {
		if s.ID == "" {
			return fmt.Errorf("%w: user story without id", ErrInvalidResult)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateEntryKey, s.ID)
		}
		seen[s.ID] = struct{}{}
		if reqs == nil || !reqs.Has(s.Related) {
			return fmt.Errorf("%w: story %s references %q", ErrUnknownReference, s.ID, s.Related)
		}
	}
	return nil
}

// ValidateAgainst checks the requirement references are a subset of reqs.
func (r *FitGapResult) ValidateAgainst(reqs *RequirementsResult) error {
	for _, e := range r.Entries {
		if reqs == nil || !reqs.Has(e.Requirement) {
			return fmt.Errorf("%w: fit-gap entry references %q", ErrUnknownReference, e.Requirement)
		}
		if !e.Fit.Valid() {
			return fmt.Errorf("%w: fit %q for %s", ErrInvalidResult, e.Fit, e.Requirement)
		}
		if !e.Effort.Valid() {
			return fmt.Errorf("%w: effort %q for %s", ErrInvalidResult, e.Effort, e.Requirement)
		}
	}
	return nil
}

// ResultEnvelope is the wire form of a Result: a stage tag plus exactly one
// populated payload.
type ResultEnvelope struct {
	Stage        Stage         `json:"stage"`
	Requirements []Requirement `json:"requirements,omitempty"`
	UserStories  []UserStory   `json:"userStories,omitempty"`
	FitGap       []FitGapEntry `json:"fitGap,omitempty"`
	Pair         *SystemPair   `json:"pair,omitempty"`
}

// EncodeResult wraps r in an envelope.
func EncodeResult(r Result) ResultEnvelope {
	switch v := r.(type) {
	case *RequirementsResult:
		return ResultEnvelope{Stage: StageRequirements, Requirements: v.Requirements}
	case *UserStoriesResult:
		return ResultEnvelope{Stage: StageUserStories, UserStories: v.Stories}
	case *FitGapResult:
		pair := v.Pair
		return ResultEnvelope{Stage: StageFitGap, FitGap: v.Entries, Pair: &pair}
	}
	return ResultEnvelope{}
}

// Decode converts the envelope back into a typed Result.
func (e ResultEnvelope) Decode() (Result, error) {
	switch e.Stage {
	case StageRequirements:
		return &RequirementsResult{Requirements: nonNil(e.Requirements)}, nil
	case StageUserStories:
		return &UserStoriesResult{Stories: nonNil(e.UserStories)}, nil
	case StageFitGap:
		res := &FitGapResult{Entries: nonNil(e.FitGap)}
		if e.Pair != nil {
			res.Pair = *e.Pair
		}
		return res, nil
	}
	return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidResult, e.Stage)
}

// MarshalResult encodes r as envelope JSON.
func MarshalResult(r Result) ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(EncodeResult(r))
}

// UnmarshalResult decodes envelope JSON.
func UnmarshalResult(data []byte) (Result, error) {
	var env ResultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return env.Decode()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
