package service

import (
	"fmt"
	"slices"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

const megabyte = 1024 * 1024

// DefaultVideoLimitMB is the hard cap for recorded meeting videos.
const DefaultVideoLimitMB = 25

// FormatRule is the acceptance rule for one input type.
type FormatRule struct {
	Extensions []string
	MaxBytes   int64 // 0 = unlimited
}

// ArtifactValidator checks an artifact's format and size against the rule
// for the requested input type. It holds no state besides its rules.
type ArtifactValidator struct {
	rules map[models.InputType]FormatRule
}

// DefaultRules returns the built-in acceptance table.
func DefaultRules() map[models.InputType]FormatRule {
	return map[models.InputType]FormatRule{
		models.InputBRD:   {Extensions: []string{"pdf", "docx", "txt", "md", "csv", "json", "xlsx"}},
		models.InputAudio: {Extensions: []string{"mp3", "wav", "m4a", "txt"}},
		models.InputVideo: {Extensions: []string{"mp4", "avi", "mov"}, MaxBytes: DefaultVideoLimitMB * megabyte},
	}
}

// Limits overrides per-type size caps in megabytes. Zero leaves the default.
type Limits struct {
	BRDMB   int
	AudioMB int
	VideoMB int
}

// NewArtifactValidator builds a validator from the default rules with the
// given limits applied.
func NewArtifactValidator(limits Limits) *ArtifactValidator {
	rules := DefaultRules()
	apply := func(t models.InputType, mb int) {
		if mb <= 0 {
			return
		}
		r := rules[t]
		r.MaxBytes = int64(mb) * megabyte
		rules[t] = r
	}
	apply(models.InputBRD, limits.BRDMB)
	apply(models.InputAudio, limits.AudioMB)
	apply(models.InputVideo, limits.VideoMB)
	return &ArtifactValidator{rules: rules}
}

// Rule returns the acceptance rule for t.
func (v *ArtifactValidator) Rule(t models.InputType) (FormatRule, bool) {
	r, ok := v.rules[t]
	return r, ok
}

// Validate returns nil when a is acceptable as inputType, otherwise an
// *InvalidArtifactError whose Reason is one of ErrNoFileSelected,
// ErrUnsupportedFormat or ErrFileTooLarge.
func (v *ArtifactValidator) Validate(a *models.Artifact, inputType models.InputType) error {
	if a == nil || a.Name == "" {
		return &InvalidArtifactError{Reason: ErrNoFileSelected}
	}
	rule, ok := v.rules[inputType]
	if !ok {
		return &InvalidArtifactError{Reason: ErrUnsupportedFormat, Detail: fmt.Sprintf("input type %q", inputType)}
	}
	ext := models.NormalizeExt(a.Ext)
	if !slices.Contains(rule.Extensions, ext) {
		return &InvalidArtifactError{
			Reason: ErrUnsupportedFormat,
			Detail: fmt.Sprintf(".%s is not accepted for %s", ext, inputType),
		}
	}
	if rule.MaxBytes > 0 && a.Size > rule.MaxBytes {
		return &InvalidArtifactError{
			Reason: ErrFileTooLarge,
			Detail: fmt.Sprintf("%.1f MB exceeds %d MB", a.SizeMB(), rule.MaxBytes/megabyte),
		}
	}
	return nil
}
