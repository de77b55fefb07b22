package models

import (
	"mime"
	"path/filepath"
	"strings"
)

// Artifact is an uploaded source file. It is treated as immutable once
// selected; replacing it starts a new analysis context.
type Artifact struct {
	Name      string    `json:"name"`
	InputType InputType `json:"inputType"`
	Ext       string    `json:"ext"`
	MIMEType  string    `json:"mimeType,omitempty"`
	Size      int64     `json:"size"`
	Data      []byte    `json:"-"`
}

// NewArtifact builds an artifact from raw bytes, deriving extension, size
// and MIME type from the file name.
func NewArtifact(name string, inputType InputType, data []byte) *Artifact {
	ext := NormalizeExt(filepath.Ext(name))
	return &Artifact{
		Name:      filepath.Base(name),
		InputType: inputType,
		Ext:       ext,
		MIMEType:  MIMETypeForExt(ext),
		Size:      int64(len(data)),
		Data:      data,
	}
}

// NormalizeExt lower-cases an extension and strips the leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MIMETypeForExt resolves a MIME type, falling back to a small table for
// media types the platform registry may not know.
func MIMETypeForExt(ext string) string {
	ext = NormalizeExt(ext)
	if ext == "" {
		return ""
	}
	if t, ok := mediaMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

var mediaMIMETypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"md":   "text/markdown",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"json": "application/json",
}

// SizeMB reports the artifact size in megabytes.
func (a *Artifact) SizeMB() float64 {
	if a == nil {
		return 0
	}
	return float64(a.Size) / (1024 * 1024)
}
