// Package models defines the data structures shared by the analysis pipeline.
package models

import (
	"fmt"
	"strings"
)

// Stage identifies one of the three dependent analysis steps.
type Stage string

const (
	StageRequirements Stage = "requirements"
	StageUserStories  Stage = "userStories"
	StageFitGap       Stage = "fitGap"
)

// Stages lists every stage in dependency order.
var Stages = []Stage{StageRequirements, StageUserStories, StageFitGap}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageRequirements, StageUserStories, StageFitGap:
		return true
	}
	return false
}

// Title returns a human-readable stage name.
func (s Stage) Title() string {
	switch s {
	case StageRequirements:
		return "Requirements"
	case StageUserStories:
		return "User Stories"
	case StageFitGap:
		return "Fit-Gap Analysis"
	}
	return string(s)
}

// ParseStage accepts the canonical names plus a few common spellings
// ("user-stories", "fit_gap", ...).
func ParseStage(s string) (Stage, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(s)))
	switch norm {
	case "requirements", "requirement", "reqs":
		return StageRequirements, nil
	case "userstories", "userstory", "stories":
		return StageUserStories, nil
	case "fitgap", "gap":
		return StageFitGap, nil
	}
	return "", fmt.Errorf("unknown stage: %q", s)
}

// InputType is the declared kind of source artifact.
type InputType string

const (
	InputBRD   InputType = "BRD"
	InputAudio InputType = "Audio"
	InputVideo InputType = "Video"
)

// Valid reports whether t is a supported input type.
func (t InputType) Valid() bool {
	switch t {
	case InputBRD, InputAudio, InputVideo:
		return true
	}
	return false
}

// Describe returns the label shown next to the input type.
func (t InputType) Describe() string {
	switch t {
	case InputBRD:
		return "Business Requirement Document"
	case InputVideo:
		return "Teams Recorded Video"
	case InputAudio:
		return "Audio Transcript"
	}
	return string(t)
}

// ParseInputType is case-insensitive.
func ParseInputType(s string) (InputType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brd":
		return InputBRD, nil
	case "audio":
		return InputAudio, nil
	case "video":
		return InputVideo, nil
	}
	return "", fmt.Errorf("invalid input type: %q", s)
}

// Priority ranks a requirement or story.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ParsePriority normalizes model output such as "high" or " MEDIUM ".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "medium", "med":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

// Fit is the fit-gap verdict for one requirement.
type Fit string

const (
	FitYes     Fit = "Yes"
	FitPartial Fit = "Partial"
	FitNo      Fit = "No"
)

func (f Fit) Valid() bool {
	return f == FitYes || f == FitPartial || f == FitNo
}

func ParseFit(s string) (Fit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "fit", "full":
		return FitYes, nil
	case "partial":
		return FitPartial, nil
	case "no", "gap", "none":
		return FitNo, nil
	}
	return "", fmt.Errorf("invalid fit: %q", s)
}

// Effort estimates the cost of closing a gap.
type Effort string

const (
	EffortLow    Effort = "Low"
	EffortMedium Effort = "Medium"
	EffortHigh   Effort = "High"
)

func (e Effort) Valid() bool {
	return e == EffortLow || e == EffortMedium || e == EffortHigh
}

func ParseEffort(s string) (Effort, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return EffortLow, nil
	case "medium", "med":
		return EffortMedium, nil
	case "high":
		return EffortHigh, nil
	}
	return "", fmt.Errorf("invalid effort: %q", s)
}
