package media

import (
	"path/filepath"
	"strings"
)

const (
	DefaultAudioType = "audio/mpeg"
	DefaultImageType = "image/jpeg"
)

func AudioMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".aac":
		return "audio/aac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".opus":
		return "audio/opus"
	case ".webm":
		return "audio/webm"
	default:
		return DefaultAudioType
	}
}

func ImageMimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return DefaultImageType
	}
}

// IsAudioUpload accepts a declared audio/* type, or a known audio
// extension when the client sent a generic type.
func IsAudioUpload(contentType, filename string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "audio/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".flac", ".mp3", ".wav", ".aac", ".m4a", ".ogg", ".oga", ".opus":
		return contentType == "" || contentType == "application/octet-stream"
	}
	return false
}

func IsImageUpload(contentType, filename string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".gif", ".webp", ".jpg", ".jpeg":
		return contentType == "" || contentType == "application/octet-stream"
	}
	return false
}
